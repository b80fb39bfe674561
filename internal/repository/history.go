package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

const (
	historyKey = "history:matches"

	// oldest records past this length are trimmed on append
	historyMaxLength = 1000
)

type HistoryRepository interface {
	Append(ctx context.Context, record *entity.HistoryRecord) error
	List(ctx context.Context, limit int) ([]*entity.HistoryRecord, error)
}

type dbHistory struct {
	client *redis.Client
}

func NewHistoryRepository(client *redis.Client) HistoryRepository {
	return &dbHistory{
		client: client,
	}
}

func (that *dbHistory) Append(ctx context.Context, record *entity.HistoryRecord) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, historyKey, recordJSON)
		pipe.LTrim(ctx, historyKey, 0, historyMaxLength-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append history record: %w", err)
	}

	return nil
}

// List returns up to limit records, newest first. A non-positive limit returns everything kept.
func (that *dbHistory) List(ctx context.Context, limit int) ([]*entity.HistoryRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	values, err := that.client.LRange(ctx, historyKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	records := make([]*entity.HistoryRecord, 0, len(values))
	for _, value := range values {
		var record entity.HistoryRecord
		if err = json.Unmarshal([]byte(value), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history record: %w", err)
		}

		records = append(records, &record)
	}

	return records, nil
}

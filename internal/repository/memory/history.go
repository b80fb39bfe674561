package memory

import (
	"context"
	"sync"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

type HistoryRepository struct {
	mu      sync.RWMutex
	records []entity.HistoryRecord
}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

func (that *HistoryRepository) Append(_ context.Context, record *entity.HistoryRecord) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	stored := *record
	stored.Participants = append([]entity.Participant(nil), record.Participants...)
	that.records = append(that.records, stored)

	return nil
}

// List returns up to limit records, newest first. A non-positive limit returns all of them.
func (that *HistoryRepository) List(_ context.Context, limit int) ([]*entity.HistoryRecord, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	count := len(that.records)
	if limit > 0 && limit < count {
		count = limit
	}

	records := make([]*entity.HistoryRecord, 0, count)
	for i := len(that.records) - 1; i >= 0 && len(records) < count; i-- {
		record := that.records[i]
		record.Participants = append([]entity.Participant(nil), record.Participants...)
		records = append(records, &record)
	}

	return records, nil
}

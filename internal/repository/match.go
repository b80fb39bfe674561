package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

const (
	matchKeyPrefix = "match:"
	scanBatchSize  = 100
)

var (
	ErrMatchNotFound = apperror.ErrMatchNotFound
	ErrMatchExists   = apperror.ErrMatchExists
)

type MatchRepository interface {
	Create(ctx context.Context, match *entity.Match) error
	CreateOrUpdate(ctx context.Context, match *entity.Match) error
	GetByID(ctx context.Context, id string) (*entity.Match, error)
	DeleteByID(ctx context.Context, id string) error
	List(ctx context.Context) ([]*entity.Match, error)
}

type dbMatch struct {
	client *redis.Client
}

func NewMatchRepository(client *redis.Client) MatchRepository {
	return &dbMatch{
		client: client,
	}
}

// Create stores a new match and fails with ErrMatchExists if the id is taken.
func (that *dbMatch) Create(ctx context.Context, match *entity.Match) error {
	matchJSON, err := json.Marshal(match)
	if err != nil {
		return fmt.Errorf("failed to marshal match: %w", err)
	}

	created, err := that.client.SetNX(ctx, matchKeyPrefix+match.ID, matchJSON, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}

	if !created {
		return fmt.Errorf("%w: %s", ErrMatchExists, match.ID)
	}

	return nil
}

func (that *dbMatch) CreateOrUpdate(ctx context.Context, match *entity.Match) error {
	matchJSON, err := json.Marshal(match)
	if err != nil {
		return fmt.Errorf("failed to marshal match: %w", err)
	}

	if err = that.client.Set(ctx, matchKeyPrefix+match.ID, matchJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set match: %w", err)
	}

	return nil
}

func (that *dbMatch) GetByID(ctx context.Context, id string) (*entity.Match, error) {
	response, err := that.client.Get(ctx, matchKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMatchNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get match by id: %w", err)
	}

	var match entity.Match
	if err = json.Unmarshal([]byte(response), &match); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match: %w", err)
	}

	return &match, nil
}

func (that *dbMatch) DeleteByID(ctx context.Context, id string) error {
	deleted, err := that.client.Del(ctx, matchKeyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete match by id: %w", err)
	}

	if deleted == 0 {
		return ErrMatchNotFound
	}

	return nil
}

// List returns every stored match. Keys removed between SCAN and MGET are skipped.
func (that *dbMatch) List(ctx context.Context) ([]*entity.Match, error) {
	var keys []string

	iter := that.client.Scan(ctx, 0, matchKeyPrefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan matches: %w", err)
	}

	if len(keys) == 0 {
		return nil, nil
	}

	values, err := that.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}

	matches := make([]*entity.Match, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var match entity.Match
		if err = json.Unmarshal([]byte(raw), &match); err != nil {
			return nil, fmt.Errorf("failed to unmarshal match %s: %w", keys[i], err)
		}

		matches = append(matches, &match)
	}

	return matches, nil
}

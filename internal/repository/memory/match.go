// Package memory holds single-process backends for matches, history and per-match locks.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

// MatchRepository keeps deep copies, so stored matches never alias caller values.
type MatchRepository struct {
	mu      sync.RWMutex
	matches map[string]*entity.Match
}

func NewMatchRepository() *MatchRepository {
	return &MatchRepository{
		matches: make(map[string]*entity.Match),
	}
}

func (that *MatchRepository) Create(_ context.Context, match *entity.Match) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.matches[match.ID]; ok {
		return fmt.Errorf("%w: %s", apperror.ErrMatchExists, match.ID)
	}

	that.matches[match.ID] = match.Clone()

	return nil
}

func (that *MatchRepository) CreateOrUpdate(_ context.Context, match *entity.Match) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.matches[match.ID] = match.Clone()

	return nil
}

func (that *MatchRepository) GetByID(_ context.Context, id string) (*entity.Match, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	match, ok := that.matches[id]
	if !ok {
		return nil, apperror.ErrMatchNotFound
	}

	return match.Clone(), nil
}

func (that *MatchRepository) DeleteByID(_ context.Context, id string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.matches[id]; !ok {
		return apperror.ErrMatchNotFound
	}

	delete(that.matches, id)

	return nil
}

// List returns the matches ordered by id.
func (that *MatchRepository) List(_ context.Context) ([]*entity.Match, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	matches := make([]*entity.Match, 0, len(that.matches))
	for _, match := range that.matches {
		matches = append(matches, match.Clone())
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].ID < matches[j].ID
	})

	return matches, nil
}

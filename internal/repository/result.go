package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/pkg"
)

type ResultRepository interface {
	RecordGameResult(ctx context.Context, userID, outcome string, scoreDelta int, mode string) error
	GetStats(ctx context.Context, userID string) (*entity.UserStats, error)
	ListResults(ctx context.Context, userID string, limit int) ([]*entity.GameResult, error)
}

type resultRepository struct {
	conn *sql.DB
	now  func() time.Time
}

func NewResultRepository(conn *sql.DB) ResultRepository {
	return &resultRepository{
		conn: conn,
		now:  time.Now,
	}
}

// RecordGameResult stores the game row and folds it into the user's aggregate in one transaction.
func (that *resultRepository) RecordGameResult(ctx context.Context, userID, outcome string, scoreDelta int, mode string) error {
	id, err := pkg.GenerateRecordID()
	if err != nil {
		return err
	}

	var wins, losses, draws int
	switch outcome {
	case entity.ResultWin:
		wins = 1
	case entity.ResultLoss:
		losses = 1
	case entity.ResultDraw:
		draws = 1
	default:
		return fmt.Errorf("unknown game outcome %q", outcome)
	}

	playedAt := that.now().UTC()

	tx, err := that.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	insertResult := `INSERT INTO game_results (id, user_id, outcome, score_delta, mode, played_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err = tx.ExecContext(ctx, insertResult, id, userID, outcome, scoreDelta, mode, playedAt); err != nil {
		return fmt.Errorf("can't save game result: %w", err)
	}

	upsertStats := `
		INSERT INTO user_stats (user_id, games_played, wins, losses, draws, score, last_played)
		VALUES (?, 1, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			games_played = games_played + 1,
			wins = wins + excluded.wins,
			losses = losses + excluded.losses,
			draws = draws + excluded.draws,
			score = score + excluded.score,
			last_played = excluded.last_played`
	if _, err = tx.ExecContext(ctx, upsertStats, userID, wins, losses, draws, scoreDelta, playedAt); err != nil {
		return fmt.Errorf("can't update user stats: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit game result: %w", err)
	}

	return nil
}

// GetStats returns zeroed stats for users that have not finished a game yet.
func (that *resultRepository) GetStats(ctx context.Context, userID string) (*entity.UserStats, error) {
	query := `SELECT games_played, wins, losses, draws, score, last_played FROM user_stats WHERE user_id = ?`

	stats := &entity.UserStats{UserID: userID}

	var lastPlayed sql.NullTime
	err := that.conn.QueryRowContext(ctx, query, userID).
		Scan(&stats.GamesPlayed, &stats.Wins, &stats.Losses, &stats.Draws, &stats.Score, &lastPlayed)
	if errors.Is(err, sql.ErrNoRows) {
		return stats, nil
	}

	if err != nil {
		return nil, fmt.Errorf("can't get user stats: %w", err)
	}

	if lastPlayed.Valid {
		stats.LastPlayed = &lastPlayed.Time
	}

	if stats.GamesPlayed > 0 {
		stats.WinRate = int(math.Round(float64(stats.Wins) * 100 / float64(stats.GamesPlayed)))
	}

	return stats, nil
}

// ListResults returns the user's latest results, newest first.
func (that *resultRepository) ListResults(ctx context.Context, userID string, limit int) ([]*entity.GameResult, error) {
	query := `SELECT id, user_id, outcome, score_delta, mode, played_at FROM game_results
		WHERE user_id = ? ORDER BY played_at DESC, rowid DESC LIMIT ?`

	rows, err := that.conn.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("can't list game results: %w", err)
	}
	defer rows.Close()

	var results []*entity.GameResult
	for rows.Next() {
		var result entity.GameResult
		if err = rows.Scan(&result.ID, &result.UserID, &result.Outcome, &result.ScoreDelta, &result.Mode, &result.PlayedAt); err != nil {
			return nil, fmt.Errorf("can't scan game result: %w", err)
		}

		results = append(results, &result)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("can't list game results: %w", err)
	}

	return results, nil
}

package repository

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-arena/testing/suite"
)

func TestRedisLocker(t *testing.T) {
	ctx, st := suite.New(t)

	locker := NewRedisLocker(st.Logger, st.Redis, time.Minute)

	// Given: a held lock
	unlock, err := locker.Lock(ctx, "1234")
	require.NoError(t, err)

	// When: a second caller tries with a short deadline
	shortCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(shortCtx, "1234")

	// Then: it gives up
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// And: another key is free
	unlockOther, err := locker.Lock(ctx, "5678")
	require.NoError(t, err)
	unlockOther()

	// When: the first holder releases
	unlock()

	// Then: the lock can be taken again
	unlockAgain, err := locker.Lock(ctx, "1234")
	require.NoError(t, err)
	unlockAgain()
}

func TestRedisLocker_ExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	ctx, st := suite.New(t)

	locker := NewRedisLocker(st.Logger, st.Redis, 50*time.Millisecond)

	// Given: a lock that expired and was taken by someone else
	_, err := locker.Lock(ctx, "1234")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	unlockSecond, err := locker.Lock(ctx, "1234")
	require.NoError(t, err)
	defer unlockSecond()

	// When: the old holder's token is used to release
	err = locker.release(ctx, lockKeyPrefix+"1234", "stale-token")

	// Then: the current holder keeps the lock
	require.ErrorIs(t, err, ErrLockNotHeld)
	exists, err := st.Redis.Exists(ctx, lockKeyPrefix+"1234").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func TestRedisLocker_ReportsLostLock(t *testing.T) {
	ctx, st := suite.New(t)

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	locker := NewRedisLocker(logger, st.Redis, 50*time.Millisecond)

	// Given: a holder whose lock expired and was taken by someone else
	unlock, err := locker.Lock(ctx, "1234")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	unlockSecond, err := locker.Lock(ctx, "1234")
	require.NoError(t, err)
	defer unlockSecond()

	// When: the first holder releases
	unlock()

	// Then: the lost lock is reported and the new holder keeps it
	assert.Contains(t, logs.String(), "failed to release lock")
	assert.Contains(t, logs.String(), ErrLockNotHeld.Error())

	exists, err := st.Redis.Exists(ctx, lockKeyPrefix+"1234").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

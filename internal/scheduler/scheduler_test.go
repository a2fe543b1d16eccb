package scheduler

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) ClearPendingTransactions(ctx context.Context) (int, error) {
	r.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("sweep must run with a deadline")
	}
	return 2, r.err
}

func TestClearanceJob(t *testing.T) {
	runner := &countingRunner{}
	job := NewClearanceJob(runner, time.Minute)

	assert.Equal(t, "wallet_clearance_sweeper", job.GetName())
	assert.NotNil(t, job.GetSchedule())

	job.Execute()
	assert.EqualValues(t, 1, runner.calls.Load())

	runner.err = errors.New("database unavailable")
	assert.NotPanics(t, job.Execute)
	assert.EqualValues(t, 2, runner.calls.Load())
}

func TestClearanceJobTimeoutIsCapped(t *testing.T) {
	assert.Equal(t, 10*time.Minute, NewClearanceJob(&countingRunner{}, time.Hour).timeout)
	assert.Equal(t, 10*time.Minute, NewClearanceJob(&countingRunner{}, 0).timeout)
	assert.Equal(t, 30*time.Second, NewClearanceJob(&countingRunner{}, 30*time.Second).timeout)
}

func TestManagerRunsJobs(t *testing.T) {
	runner := &countingRunner{}
	manager, err := NewManager(nil, NewClearanceJob(runner, 50*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, manager.RegisterJobs())

	manager.Start()
	defer manager.Stop()

	assert.Eventually(t, func() bool {
		return runner.calls.Load() >= 2
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRedisLocker(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	locker := NewRedisLocker(client, "test:"+uuid.NewString()+":", time.Minute)

	lock, err := locker.Lock(ctx, "wallet_clearance_sweeper")
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "wallet_clearance_sweeper")
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, lock.Unlock(ctx))

	again, err := locker.Lock(ctx, "wallet_clearance_sweeper")
	require.NoError(t, err)
	require.NoError(t, again.Unlock(ctx))
}

package redlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (redis.UniversalClient, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

func TestLockAndUnlock(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	locker := NewLocker(client, "verify:usr_123", "holder-a")
	require.NoError(t, locker.Lock(ctx, time.Minute))

	// Second holder cannot take the same key while held.
	other := NewLocker(client, "verify:usr_123", "holder-b")
	assert.Error(t, other.Lock(ctx, time.Minute))

	require.NoError(t, locker.Unlock(ctx))
	assert.NoError(t, other.Lock(ctx, time.Minute))
}

func TestUnlock_NotHolder(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	locker := NewLocker(client, "verify:usr_123", "holder-a")
	require.NoError(t, locker.Lock(ctx, time.Minute))

	imposter := NewLocker(client, "verify:usr_123", "holder-b")
	assert.Error(t, imposter.Unlock(ctx))
}

func TestExtendLock(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	locker := NewLocker(client, "verify:usr_123", "holder-a")
	require.NoError(t, locker.Lock(ctx, time.Second))
	require.NoError(t, locker.ExtendLock(ctx, time.Minute))

	mr.FastForward(5 * time.Second)
	assert.Error(t, locker.Lock(ctx, time.Minute))
}

func TestLock_CommandShape(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "verify:usr_123", "holder-a")

	mock.ExpectSetNX("verify:usr_123", "holder-a", 5*time.Second).SetVal(true)
	assert.NoError(t, locker.Lock(context.Background(), 5*time.Second))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlock_OnlyHolderValueDeletes(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "verify:usr_123", "holder-a")

	script := "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"
	mock.ExpectEval(script, []string{"verify:usr_123"}, "holder-a").SetVal(int64(1))
	assert.NoError(t, locker.Unlock(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExtendLock_ExpiredLockFails(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "verify:usr_123", "holder-a")

	script := "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('pexpire', KEYS[1], ARGV[2]) else return 0 end"
	mock.ExpectEval(script, []string{"verify:usr_123"}, "holder-a", "60000").SetVal(int64(0))
	assert.Error(t, locker.ExtendLock(context.Background(), time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitLock_Timeout(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	locker := NewLocker(client, "verify:usr_123", "holder-a")
	require.NoError(t, locker.Lock(ctx, time.Minute))

	other := NewLocker(client, "verify:usr_123", "holder-b")
	err := other.WaitLock(ctx, time.Minute, 300*time.Millisecond)
	assert.Error(t, err)
}

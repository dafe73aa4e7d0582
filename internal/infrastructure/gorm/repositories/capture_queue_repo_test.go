package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonpay/charge-connector/internal/domain"
	gormdb "github.com/halcyonpay/charge-connector/internal/infrastructure/gorm"
)

func setupQueue(t *testing.T) domain.CaptureQueue {
	t.Helper()
	db, err := gormdb.NewTestConnection()
	require.NoError(t, err)
	return NewCaptureQueueRepo(db)
}

func TestDequeue_EmptyQueueReturnsNil(t *testing.T) {
	queue := setupQueue(t)

	item, err := queue.Dequeue(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestEnqueueDequeue_ClaimsItemUnderLease(t *testing.T) {
	queue := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, 7))

	item, err := queue.Dequeue(ctx, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, int64(7), item.ChargeID)
	assert.Equal(t, 0, item.Attempts)

	// While the lease is held the item is invisible to other consumers.
	second, err := queue.Dequeue(ctx, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestAck_RemovesItemPermanently(t *testing.T) {
	queue := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, 7))
	item, err := queue.Dequeue(ctx, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, item)

	require.NoError(t, queue.Ack(ctx, item.ID))

	again, err := queue.Dequeue(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestNack_RedeliversAfterBackoffWithBumpedAttempts(t *testing.T) {
	queue := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, 7))
	item, err := queue.Dequeue(ctx, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, item)

	require.NoError(t, queue.Nack(ctx, item.ID, 10*time.Millisecond))

	// Not yet due.
	early, err := queue.Dequeue(ctx, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, early)

	time.Sleep(20 * time.Millisecond)

	redelivered, err := queue.Dequeue(ctx, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, redelivered)
	assert.Equal(t, item.ID, redelivered.ID)
	assert.Equal(t, 1, redelivered.Attempts)
}

func TestDequeue_ExpiredLeaseIsReclaimable(t *testing.T) {
	queue := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, 7))

	item, err := queue.Dequeue(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, item)

	time.Sleep(20 * time.Millisecond)

	reclaimed, err := queue.Dequeue(ctx, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, reclaimed)
	assert.Equal(t, item.ID, reclaimed.ID)
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
)

func TestReconcilerResumesAfterBrokerOutage(t *testing.T) {
	store := newMemStore()
	store.addType(1, 10, 5000, nil, 0)
	store.addOrder(7, 10, model.OrderPending, [2]uint64{1, 2})
	n := &recordingNotifier{err: errors.New("broker unreachable")}
	s := newTestSettler(store, n, SettlementOptions{})

	res, err := s.Settle(context.Background(), 7, 1)
	require.NoError(t, err)
	require.False(t, res.Completed)

	n.setErr(nil)
	r := NewReconciler(s, ReconcileOptions{Grace: 30 * time.Second, Batch: 10}, nil)

	// Still inside the grace period.
	done, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, done)
	assert.Zero(t, n.count(7))

	s.now = func() time.Time { return time.Now().Add(time.Minute) }
	done, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.Equal(t, 1, n.count(7))
	assert.Len(t, store.ticketsOf(7), 2, "credentials are not issued twice")
	assert.Equal(t, int64(2), store.sold(1))
	assert.True(t, store.markerOf(7).completed)

	done, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, done)
}

func TestReconcilerGivesUpAfterMaxAttempts(t *testing.T) {
	store := newMemStore()
	store.addType(1, 10, 5000, nil, 0)
	store.addOrder(7, 10, model.OrderPending, [2]uint64{1, 1})
	n := &recordingNotifier{err: errors.New("broker unreachable")}
	s := newTestSettler(store, n, SettlementOptions{})
	_, err := s.Settle(context.Background(), 7, 1)
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(time.Hour) }
	r := NewReconciler(s, ReconcileOptions{MaxAttempts: 3}, nil)
	for i := 0; i < 5; i++ {
		_, err := r.RunOnce(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, store.markerOf(7).attempts)
}

func TestReconcilerRunStopsOnCancel(t *testing.T) {
	s := newTestSettler(newMemStore(), &recordingNotifier{}, SettlementOptions{})
	r := NewReconciler(s, ReconcileOptions{Interval: time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(stopped)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}

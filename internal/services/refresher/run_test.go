package refresher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/VinBox/internal/models"
	"github.com/BearBump/VinBox/internal/storage/pgvehicle"
)

type fakeRepo struct {
	mu    sync.Mutex
	calls int
	items []*pgvehicle.StaleVehicle
	err   error
}

func (r *fakeRepo) ClaimStaleFailures(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*pgvehicle.StaleVehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	items := r.items
	r.items = nil
	return items, r.err
}

func (r *fakeRepo) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestRefresher_Run_StopsOnContextCancel(t *testing.T) {
	repo := &fakeRepo{}
	r := New(repo, &fakeRegistry{}, &fakeProducer{}, nil, "t").WithSettings(5*time.Millisecond, 1, 1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.GreaterOrEqual(t, repo.Calls(), 1)
}

func TestRefresher_Trigger_RunsCycle(t *testing.T) {
	repo := &fakeRepo{items: []*pgvehicle.StaleVehicle{
		stale(models.FailureNetwork, 0),
		{Record: models.NewFailedRecord("1M8GDM9AXKP042788", models.FailureNotFound, models.ErrVehicleNotFound, time.Now())},
	}}
	fp := &fakeProducer{}
	r := New(repo, &fakeRegistry{err: errors.New("down")}, fp, nil, "t").WithSettings(time.Hour, 10, 2, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	r.Trigger()
	require.Eventually(t, func() bool { return r.Stats().TotalProcessed == 2 }, time.Second, 5*time.Millisecond)

	st := r.Stats()
	require.Equal(t, int64(2), st.TotalClaimed)
	require.Zero(t, st.TotalErrors)
	require.Zero(t, st.InFlight)
	require.NotNil(t, st.LastTriggerAt)
	require.NotNil(t, st.LastCycleAt)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRefresher_ClaimErrorRecorded(t *testing.T) {
	repo := &fakeRepo{err: errors.New("pg down")}
	r := New(repo, &fakeRegistry{}, &fakeProducer{}, nil, "t")
	r.runOnce(context.Background())
	require.Equal(t, "pg down", r.Stats().LastError)
}

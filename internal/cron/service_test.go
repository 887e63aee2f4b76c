package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/influencehub-backend/pkg/logger"
	"github.com/angelmondragon/influencehub-backend/pkg/metrics"
)

type fakeLock struct {
	held       bool
	acquireErr error
	releases   int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (c *countingJob) Name() string { return c.name }

func (c *countingJob) Run(context.Context) error {
	c.runs++
	return c.err
}

func TestRunCycleRunsEveryJobAndCombinesFailures(t *testing.T) {
	ok := &countingJob{name: "escrow-reconcile-scan"}
	failing := &countingJob{name: "outbox-retention", err: errors.New("boom")}
	reg := prometheus.NewRegistry()
	lock := &fakeLock{}
	svc := newTestCronService(t, NewRegistry(failing, ok), lock, metrics.NewCronJobMetrics(reg))

	err := svc.runCycle(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Contains(t, err.Error(), "outbox-retention")
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.held)

	count, err := testutil.GatherAndCount(reg, "influencehub_cron_job_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &countingJob{name: "escrow-reconcile-scan"}
	svc := newTestCronService(t, NewRegistry(job), &fakeLock{held: true}, nil)

	require.NoError(t, svc.runCycle(context.Background()))
	assert.Zero(t, job.runs)
}

func TestRunCycleReportsLockErrors(t *testing.T) {
	job := &countingJob{name: "escrow-reconcile-scan"}
	svc := newTestCronService(t, NewRegistry(job), &fakeLock{acquireErr: errors.New("redis down")}, nil)

	require.ErrorContains(t, svc.runCycle(context.Background()), "lock acquire")
	assert.Zero(t, job.runs)
}

func TestRunExecutesImmediatelyAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	job := &cancellingJob{cancel: cancel}
	svc := newTestCronService(t, NewRegistry(job), &fakeLock{}, nil)

	err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, job.runs)
}

func TestNewServiceDefaults(t *testing.T) {
	svc, err := NewService(ServiceParams{Logger: testLogger(), Lock: &fakeLock{}})
	require.NoError(t, err)
	assert.Equal(t, defaultInterval, svc.interval)
	assert.Empty(t, svc.registry.Jobs())

	_, err = NewService(ServiceParams{Logger: testLogger()})
	require.Error(t, err)
}

type cancellingJob struct {
	cancel context.CancelFunc
	runs   int
}

func (c *cancellingJob) Name() string { return "cancelling" }

func (c *cancellingJob) Run(context.Context) error {
	c.runs++
	c.cancel()
	return nil
}

func newTestCronService(t *testing.T, registry *Registry, lock Lock, m *metrics.CronJobMetrics) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: registry,
		Lock:     lock,
		Metrics:  m,
		Interval: time.Hour,
	})
	require.NoError(t, err)
	return svc
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

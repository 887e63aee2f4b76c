package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/influencehub-backend/internal/gateway"
	"github.com/angelmondragon/influencehub-backend/pkg/db/models"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
	"github.com/angelmondragon/influencehub-backend/pkg/logger"
	"github.com/angelmondragon/influencehub-backend/pkg/metrics"
	"github.com/angelmondragon/influencehub-backend/pkg/pagination"
)

func TestReconcileJobCountsDriftWithoutFailing(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	inSync := liveHold("pi_sync", enums.EscrowStatusFunded)
	drifted := liveHold("pi_drift", enums.EscrowStatusFunded)
	lister := &fakeHoldLister{holds: []models.EscrowHold{inSync, drifted}}
	reader := &fakeStatusReader{statuses: map[string]gateway.ProviderStatus{
		"pi_sync":  {Status: enums.ProviderHoldFunded, Amount: inSync.GrossAmount},
		"pi_drift": {Status: enums.ProviderHoldCancelled, Amount: drifted.GrossAmount},
	}}
	reg := prometheus.NewRegistry()
	job := newTestReconcileJob(t, lister, reader, metrics.NewEscrowMetrics(reg))
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, now.Add(-defaultReconcileMinAge), lister.cutoff)
	assert.Equal(t, defaultReconcileBatchSize, lister.limit)
	assert.ElementsMatch(t, []string{"pi_sync", "pi_drift"}, reader.checked)

	count, err := testutil.GatherAndCount(reg, "influencehub_escrow_reconcile_discrepancies_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReconcileJobPagesThroughAllLiveHolds(t *testing.T) {
	holds := []models.EscrowHold{
		liveHold("pi_1", enums.EscrowStatusFunded),
		liveHold("pi_2", enums.EscrowStatusFunded),
		liveHold("pi_3", enums.EscrowStatusFunded),
	}
	statuses := map[string]gateway.ProviderStatus{}
	for _, h := range holds {
		statuses[h.ProviderHoldID] = gateway.ProviderStatus{Status: enums.ProviderHoldFunded, Amount: h.GrossAmount}
	}
	lister := &fakeHoldLister{holds: holds}
	reader := &fakeStatusReader{statuses: statuses}
	job, err := NewReconcileJob(ReconcileJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Holds:     lister,
		Gateway:   reader,
		BatchSize: 2,
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"pi_1", "pi_2", "pi_3"}, reader.checked)
	assert.Equal(t, 2, lister.calls)
}

func TestReconcileJobReturnsStatusErrors(t *testing.T) {
	first := liveHold("pi_a", enums.EscrowStatusPendingPayment)
	second := liveHold("pi_b", enums.EscrowStatusPendingPayment)
	lister := &fakeHoldLister{holds: []models.EscrowHold{first, second}}
	reader := &fakeStatusReader{
		statuses: map[string]gateway.ProviderStatus{},
		errs: map[string]error{
			"pi_a": errors.New("timeout"),
			"pi_b": errors.New("connection refused"),
		},
	}
	job := newTestReconcileJob(t, lister, reader, nil)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), first.ID.String())
	assert.Contains(t, err.Error(), second.ID.String())
}

func TestReconcileJobPropagatesListError(t *testing.T) {
	job := newTestReconcileJob(t, &fakeHoldLister{err: errors.New("db down")}, &fakeStatusReader{}, nil)

	err := job.Run(context.Background())
	require.ErrorContains(t, err, "list live holds")
}

func TestNewReconcileJobRequiresGateway(t *testing.T) {
	_, err := NewReconcileJob(ReconcileJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Holds:  &fakeHoldLister{},
	})
	require.Error(t, err)
}

func newTestReconcileJob(t *testing.T, lister liveHoldLister, reader holdStatusReader, m *metrics.EscrowMetrics) *reconcileJob {
	t.Helper()
	job, err := NewReconcileJob(ReconcileJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Holds:   lister,
		Gateway: reader,
		Metrics: m,
	})
	require.NoError(t, err)
	require.Equal(t, reconcileJobName, job.Name())
	return job.(*reconcileJob)
}

func liveHold(providerID string, status enums.EscrowStatus) models.EscrowHold {
	return models.EscrowHold{
		ID:             uuid.New(),
		ProviderHoldID: providerID,
		CampaignID:     uuid.New(),
		BrandID:        uuid.New(),
		GrossAmount:    decimal.RequireFromString("1000.00"),
		Currency:       enums.CurrencyUSD,
		Status:         status,
	}
}

// fakeHoldLister serves holds in slice order, one page per call.
type fakeHoldLister struct {
	holds  []models.EscrowHold
	err    error
	cutoff time.Time
	limit  int
	calls  int
}

func (f *fakeHoldLister) ListLive(_ context.Context, createdBefore time.Time, after *pagination.Cursor, limit int) ([]models.EscrowHold, error) {
	f.cutoff = createdBefore
	f.limit = limit
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	start := 0
	if after != nil {
		for i, h := range f.holds {
			if h.ID == after.ID {
				start = i + 1
			}
		}
	}
	end := start + limit
	if end > len(f.holds) {
		end = len(f.holds)
	}
	return f.holds[start:end], nil
}

type fakeStatusReader struct {
	statuses map[string]gateway.ProviderStatus
	errs     map[string]error
	checked  []string
}

func (f *fakeStatusReader) GetStatus(_ context.Context, holdID string) (gateway.ProviderStatus, error) {
	f.checked = append(f.checked, holdID)
	if err := f.errs[holdID]; err != nil {
		return gateway.ProviderStatus{}, err
	}
	return f.statuses[holdID], nil
}

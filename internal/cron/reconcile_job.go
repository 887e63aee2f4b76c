package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/influencehub-backend/internal/escrow"
	"github.com/angelmondragon/influencehub-backend/internal/gateway"
	"github.com/angelmondragon/influencehub-backend/pkg/db/models"
	"github.com/angelmondragon/influencehub-backend/pkg/logger"
	"github.com/angelmondragon/influencehub-backend/pkg/metrics"
	"github.com/angelmondragon/influencehub-backend/pkg/pagination"
)

const (
	reconcileJobName          = "escrow-reconcile-scan"
	defaultReconcileBatchSize = 100
	defaultReconcileMinAge    = 10 * time.Minute
	defaultStatusTimeout      = 10 * time.Second
)

type liveHoldLister interface {
	ListLive(ctx context.Context, createdBefore time.Time, after *pagination.Cursor, limit int) ([]models.EscrowHold, error)
}

type holdStatusReader interface {
	GetStatus(ctx context.Context, holdID string) (gateway.ProviderStatus, error)
}

type ReconcileJobParams struct {
	Logger        *logger.Logger
	Holds         liveHoldLister
	Gateway       holdStatusReader
	Metrics       *metrics.EscrowMetrics
	BatchSize     int
	MinAge        time.Duration
	StatusTimeout time.Duration
}

// NewReconcileJob builds the read-only scan that compares live holds with the provider.
// Mismatches are logged and counted; nothing is written back.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Holds == nil {
		return nil, fmt.Errorf("escrow repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	job := &reconcileJob{
		logg:          params.Logger,
		holds:         params.Holds,
		gateway:       params.Gateway,
		metrics:       params.Metrics,
		batchSize:     params.BatchSize,
		minAge:        params.MinAge,
		statusTimeout: params.StatusTimeout,
		now:           time.Now,
	}
	if job.batchSize <= 0 {
		job.batchSize = defaultReconcileBatchSize
	}
	job.batchSize = pagination.NormalizeLimit(job.batchSize)
	if job.minAge <= 0 {
		job.minAge = defaultReconcileMinAge
	}
	if job.statusTimeout <= 0 {
		job.statusTimeout = defaultStatusTimeout
	}
	return job, nil
}

type reconcileJob struct {
	logg          *logger.Logger
	holds         liveHoldLister
	gateway       holdStatusReader
	metrics       *metrics.EscrowMetrics
	batchSize     int
	minAge        time.Duration
	statusTimeout time.Duration
	now           func() time.Time
}

func (j *reconcileJob) Name() string { return reconcileJobName }

// Run pages through every live hold and returns the provider lookups that failed.
// Discrepancies alone do not fail the job.
func (j *reconcileJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-j.minAge)

	var (
		statusErrs error
		scanned    int
		drifted    int
		after      *pagination.Cursor
	)
	for {
		holds, err := j.holds.ListLive(ctx, cutoff, after, j.batchSize)
		if err != nil {
			return multierr.Append(statusErrs, fmt.Errorf("list live holds: %w", err))
		}
		for _, hold := range holds {
			if ctx.Err() != nil {
				return multierr.Append(statusErrs, ctx.Err())
			}
			scanned++
			if !j.check(ctx, hold, now, &statusErrs) {
				drifted++
			}
		}
		if len(holds) < j.batchSize {
			break
		}
		last := holds[len(holds)-1]
		after = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"holds_scanned": scanned,
		"holds_drifted": drifted,
		"status_errors": len(multierr.Errors(statusErrs)),
	}), "escrow reconcile scan complete")
	return statusErrs
}

// check fetches the provider status of one hold and reports whether it is in sync with the provider.
func (j *reconcileJob) check(ctx context.Context, hold models.EscrowHold, now time.Time, statusErrs *error) bool {
	statusCtx, cancel := context.WithTimeout(ctx, j.statusTimeout)
	provider, statusErr := j.gateway.GetStatus(statusCtx, hold.ProviderHoldID)
	cancel()

	rec := escrow.Reconcile(hold, provider, statusErr, now)
	if statusErr != nil {
		*statusErrs = multierr.Append(*statusErrs, fmt.Errorf("escrow %s: %w", hold.ID, statusErr))
	}
	if rec.InSync {
		return true
	}
	j.metrics.IncDiscrepancy(rec.PersistedStatus.String(), rec.ProviderStatus.String())
	holdCtx := j.logg.WithEscrow(ctx, hold.ID.String(), hold.CampaignID.String(), reconcileJobName)
	j.logg.Warn(j.logg.WithFields(holdCtx, map[string]any{
		"persisted_status": rec.PersistedStatus,
		"provider_status":  rec.ProviderStatus,
		"discrepancy":      rec.Discrepancy,
	}), "escrow out of sync with provider")
	return false
}

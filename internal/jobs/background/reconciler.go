package background

import (
	"context"
	"sync"
	"time"

	"verimeter/internal/metrics"
	"verimeter/internal/models"
	"verimeter/internal/services"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const reconcilePageSize = 100

// ReconcileReport summarises one pass over every wallet
type ReconcileReport struct {
	Checked    int                            `json:"checked"`
	Mismatched []*models.ReconciliationResult `json:"mismatched"`
	Failed     map[string]string              `json:"failed,omitempty"`
	StartedAt  time.Time                      `json:"started_at"`
	Duration   string                         `json:"duration"`
}

// Reconciler compares every wallet's cached balance with its ledger
type Reconciler struct {
	wallets     services.WalletService
	concurrency int
	logger      *logrus.Logger
}

func NewReconciler(wallets services.WalletService, concurrency int, logger *logrus.Logger) *Reconciler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reconciler{wallets: wallets, concurrency: concurrency, logger: logger}
}

// Run checks all wallets. A failure on one wallet is recorded in the report
// and does not stop the pass; only listing errors and cancellation abort it.
func (r *Reconciler) Run(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{StartedAt: time.Now().UTC(), Failed: map[string]string{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	offset := 0
	var listErr error
	for {
		page, err := r.wallets.ListWallets(gctx, reconcilePageSize, offset)
		if err != nil {
			listErr = err
			break
		}
		for _, w := range page {
			tenantID := w.TenantID
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				result, err := r.wallets.Reconcile(gctx, tenantID)

				mu.Lock()
				defer mu.Unlock()
				report.Checked++
				switch {
				case err != nil:
					report.Failed[tenantID] = err.Error()
				case !result.Consistent:
					report.Mismatched = append(report.Mismatched, result)
				}
				return nil
			})
		}
		if len(page) < reconcilePageSize {
			break
		}
		offset += reconcilePageSize
	}

	err := g.Wait()
	if listErr != nil {
		err = listErr
	}
	report.Duration = time.Since(report.StartedAt).Round(time.Millisecond).String()

	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case len(report.Mismatched) > 0 || len(report.Failed) > 0:
		status = "mismatch"
	}
	metrics.RecordReconciliationRun(status)

	r.logger.WithFields(logrus.Fields{
		"checked":    report.Checked,
		"mismatched": len(report.Mismatched),
		"failed":     len(report.Failed),
		"duration":   report.Duration,
		"status":     status,
	}).Info("wallet reconciliation finished")

	return report, err
}

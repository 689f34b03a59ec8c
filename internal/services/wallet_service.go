package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"verimeter/internal/common"
	"verimeter/internal/metrics"
	"verimeter/internal/models"
	"verimeter/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type WalletService interface {
	// GetBalance returns zero for tenants without a wallet
	GetBalance(ctx context.Context, tenantID string) (decimal.Decimal, error)
	GetWallet(ctx context.Context, tenantID string) (*models.Wallet, error)

	// Deduct charges a tenant. A non-empty referenceID makes the call
	// idempotent: a repeat charges nothing and returns nil.
	Deduct(ctx context.Context, tenantID string, amount decimal.Decimal, serviceCode, referenceID string, metadata models.JSONB) error
	Topup(ctx context.Context, tenantID string, amount decimal.Decimal, paymentID, actorID string) error
	Refund(ctx context.Context, tenantID string, amount decimal.Decimal, reason, referenceID string) error

	// FindCharge returns the deduction recorded under referenceID, or
	// ErrChargeNotFound
	FindCharge(ctx context.Context, tenantID, referenceID string) (*models.WalletTransaction, error)

	ListTransactions(ctx context.Context, tenantID string, limit, offset int) ([]*models.WalletTransaction, error)
	Reconcile(ctx context.Context, tenantID string) (*models.ReconciliationResult, error)
	ListWallets(ctx context.Context, limit, offset int) ([]*models.Wallet, error)
}

// keyedMutex serializes work per key. Entries are dropped when unused so the
// map does not grow with the tenant count.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyLock)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

type walletService struct {
	walletRepo      repositories.WalletRepository
	audit           AuditLogsService
	locks           *keyedMutex
	defaultCurrency string
	logger          *logrus.Logger
}

func NewWalletService(walletRepo repositories.WalletRepository, audit AuditLogsService, defaultCurrency string, logger *logrus.Logger) WalletService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &walletService{
		walletRepo:      walletRepo,
		audit:           audit,
		locks:           newKeyedMutex(),
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

func (s *walletService) GetWallet(ctx context.Context, tenantID string) (*models.Wallet, error) {
	wallet, err := s.walletRepo.GetByTenant(ctx, tenantID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrWalletNotFound
	}
	return wallet, err
}

func (s *walletService) GetBalance(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	wallet, err := s.walletRepo.GetByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to read wallet: %w", err)
	}
	return wallet.Balance, nil
}

func actorFrom(ctx context.Context, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if actorID, ok := common.GetActorIDFromContext(ctx); ok {
		return actorID
	}
	return "system"
}

// validAmount rejects non-positive amounts and amounts the ledger columns
// would round
func validAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !models.FitsMoneyScale(amount) {
		return fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, models.MoneyScale)
	}
	return nil
}

// alreadyApplied reports whether a ledger row with this reference exists
func (s *walletService) alreadyApplied(ctx context.Context, tenantID string, txType models.TransactionType, referenceID string) (bool, error) {
	if referenceID == "" {
		return false, nil
	}
	_, err := s.walletRepo.GetTransactionByReference(ctx, tenantID, txType, referenceID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repositories.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check transaction reference: %w", err)
	}
}

// apply runs one ledger mutation under the tenant lock. The lock is released
// before the caller audits, so a slow audit sink never serializes a tenant's
// charges. A nil record with a nil error means the reference was already
// applied.
func (s *walletService) apply(ctx context.Context, tenantID string, txType models.TransactionType, referenceID string, opts repositories.WalletLockOptions, fn repositories.WalletMutateFunc) (*models.WalletTransaction, error) {
	unlock := s.locks.Lock(tenantID)
	defer unlock()

	done, err := s.alreadyApplied(ctx, tenantID, txType, referenceID)
	if err != nil {
		return nil, err
	}
	if done {
		s.logger.WithFields(logrus.Fields{
			"tenant_id":    tenantID,
			"type":         txType,
			"reference_id": referenceID,
		}).Debug("duplicate transaction ignored")
		return nil, nil
	}

	record, err := s.walletRepo.ApplyTransaction(ctx, tenantID, opts, fn)
	if errors.Is(err, repositories.ErrDuplicateReference) {
		// another process won the same reference
		return nil, nil
	}
	return record, err
}

func (s *walletService) FindCharge(ctx context.Context, tenantID, referenceID string) (*models.WalletTransaction, error) {
	if referenceID == "" {
		return nil, ErrChargeNotFound
	}
	tx, err := s.walletRepo.GetTransactionByReference(ctx, tenantID, models.TransactionDeduction, referenceID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrChargeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up charge: %w", err)
	}
	return tx, nil
}

func (s *walletService) Deduct(ctx context.Context, tenantID string, amount decimal.Decimal, serviceCode, referenceID string, metadata models.JSONB) error {
	if err := validAmount(amount); err != nil {
		return err
	}

	var insufficient *InsufficientBalanceError
	record, err := s.apply(ctx, tenantID, models.TransactionDeduction, referenceID, repositories.WalletLockOptions{},
		func(w *models.Wallet) (*models.WalletTransaction, error) {
			if w.Balance.LessThan(amount) {
				return nil, &InsufficientBalanceError{Required: amount, Available: w.Balance, Currency: w.Currency}
			}
			return &models.WalletTransaction{
				Type:            models.TransactionDeduction,
				Amount:          amount,
				PreviousBalance: w.Balance,
				NewBalance:      w.Balance.Sub(amount),
				ServiceCode:     common.StringPtr(serviceCode),
				ReferenceID:     common.StringPtr(referenceID),
				ActorID:         actorFrom(ctx, ""),
				Metadata:        metadata,
			}, nil
		})

	switch {
	case err == nil && record == nil:
		return nil
	case err == nil:
	case errors.Is(err, repositories.ErrNotFound):
		metrics.RecordWalletOperation(string(models.TransactionDeduction), "wallet_not_found")
		return withAuditErr(ErrWalletNotFound, s.logFailure(ctx, tenantID, models.EventDeduction, models.ReasonWalletNotFound,
			"no wallet for tenant", serviceCode, models.JSONB{"required": amount.String(), "reference_id": referenceID}))
	case errors.As(err, &insufficient):
		metrics.RecordWalletOperation(string(models.TransactionDeduction), "insufficient_balance")
		return withAuditErr(insufficient, s.logFailure(ctx, tenantID, models.EventDeduction, models.ReasonInsufficientBalance,
			insufficient.Error(), serviceCode, models.JSONB{
				"required":     insufficient.Required.String(),
				"available":    insufficient.Available.String(),
				"currency":     insufficient.Currency,
				"reference_id": referenceID,
			}))
	default:
		metrics.RecordWalletOperation(string(models.TransactionDeduction), "error")
		return fmt.Errorf("failed to deduct: %w", err)
	}

	metrics.RecordWalletOperation(string(models.TransactionDeduction), "success")
	auditMeta := ledgerMetadata(record)
	for k, v := range metadata {
		if _, reserved := auditMeta[k]; !reserved {
			auditMeta[k] = v
		}
	}
	return s.audit.Log(ctx, &models.AuditLog{
		TenantID:     tenantID,
		EventType:    models.EventDeduction,
		EventResult:  models.EventResultAllowed,
		TargetEntity: models.TargetWallet,
		TargetID:     record.WalletID.String(),
		Message:      fmt.Sprintf("deducted %s for %s", amount.String(), serviceCode),
		Metadata:     auditMeta,
	})
}

func (s *walletService) Topup(ctx context.Context, tenantID string, amount decimal.Decimal, paymentID, actorID string) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if tenantID == "" {
		return errors.New("tenant_id is required")
	}

	actor := actorFrom(ctx, actorID)
	record, err := s.apply(ctx, tenantID, models.TransactionTopup, paymentID,
		repositories.WalletLockOptions{CreateIfMissing: true, Currency: s.defaultCurrency},
		func(w *models.Wallet) (*models.WalletTransaction, error) {
			return &models.WalletTransaction{
				Type:            models.TransactionTopup,
				Amount:          amount,
				PreviousBalance: w.Balance,
				NewBalance:      w.Balance.Add(amount),
				ReferenceID:     common.StringPtr(paymentID),
				ActorID:         actor,
			}, nil
		})
	if err != nil {
		metrics.RecordWalletOperation(string(models.TransactionTopup), "error")
		return fmt.Errorf("failed to top up: %w", err)
	}
	if record == nil {
		return nil
	}

	metrics.RecordWalletOperation(string(models.TransactionTopup), "success")
	return s.audit.Log(ctx, &models.AuditLog{
		TenantID:     tenantID,
		EventType:    models.EventTopup,
		EventResult:  models.EventResultAllowed,
		ActorID:      actor,
		TargetEntity: models.TargetWallet,
		TargetID:     record.WalletID.String(),
		Message:      fmt.Sprintf("topped up %s", amount.String()),
		Metadata:     ledgerMetadata(record),
	})
}

func (s *walletService) Refund(ctx context.Context, tenantID string, amount decimal.Decimal, reason, referenceID string) error {
	if err := validAmount(amount); err != nil {
		return err
	}

	record, err := s.apply(ctx, tenantID, models.TransactionRefund, referenceID, repositories.WalletLockOptions{},
		func(w *models.Wallet) (*models.WalletTransaction, error) {
			return &models.WalletTransaction{
				Type:            models.TransactionRefund,
				Amount:          amount,
				PreviousBalance: w.Balance,
				NewBalance:      w.Balance.Add(amount),
				ReferenceID:     common.StringPtr(referenceID),
				ActorID:         actorFrom(ctx, ""),
				Metadata:        models.JSONB{"reason": reason},
			}, nil
		})

	switch {
	case err == nil && record == nil:
		return nil
	case err == nil:
	case errors.Is(err, repositories.ErrNotFound):
		metrics.RecordWalletOperation(string(models.TransactionRefund), "wallet_not_found")
		return withAuditErr(ErrWalletNotFound, s.logFailure(ctx, tenantID, models.EventRefund, models.ReasonWalletNotFound,
			"no wallet for tenant", "", models.JSONB{"amount": amount.String(), "reason": reason, "reference_id": referenceID}))
	default:
		metrics.RecordWalletOperation(string(models.TransactionRefund), "error")
		return fmt.Errorf("failed to refund: %w", err)
	}

	metrics.RecordWalletOperation(string(models.TransactionRefund), "success")
	auditMeta := ledgerMetadata(record)
	auditMeta["reason"] = reason
	return s.audit.Log(ctx, &models.AuditLog{
		TenantID:     tenantID,
		EventType:    models.EventRefund,
		EventResult:  models.EventResultAllowed,
		TargetEntity: models.TargetWallet,
		TargetID:     record.WalletID.String(),
		Message:      fmt.Sprintf("refunded %s", amount.String()),
		Metadata:     auditMeta,
	})
}

// logFailure writes a FAILED entry for a refused wallet mutation. The
// returned error is nil unless the audit store is strict and failed.
func (s *walletService) logFailure(ctx context.Context, tenantID, eventType, reason, message, serviceCode string, metadata models.JSONB) error {
	if serviceCode != "" {
		metadata["service_code"] = serviceCode
	}
	return s.audit.Log(ctx, &models.AuditLog{
		TenantID:     tenantID,
		EventType:    eventType,
		EventResult:  models.EventResultFailed,
		TargetEntity: models.TargetWallet,
		TargetID:     tenantID,
		ReasonCode:   &reason,
		Message:      message,
		Metadata:     metadata,
	})
}

// ledgerMetadata captures balances read under the wallet lock
func ledgerMetadata(record *models.WalletTransaction) models.JSONB {
	meta := models.JSONB{
		"transaction_id":   record.ID.String(),
		"amount":           record.Amount.String(),
		"previous_balance": record.PreviousBalance.String(),
		"new_balance":      record.NewBalance.String(),
	}
	if record.ServiceCode != nil {
		meta["service_code"] = *record.ServiceCode
	}
	if record.ReferenceID != nil {
		meta["reference_id"] = *record.ReferenceID
	}
	return meta
}

func (s *walletService) ListTransactions(ctx context.Context, tenantID string, limit, offset int) ([]*models.WalletTransaction, error) {
	limit, offset, err := common.ValidatePaginationParams(limit, offset)
	if err != nil {
		return nil, err
	}
	return s.walletRepo.ListTransactions(ctx, tenantID, limit, offset)
}

func (s *walletService) ListWallets(ctx context.Context, limit, offset int) ([]*models.Wallet, error) {
	return s.walletRepo.List(ctx, limit, offset)
}

// Reconcile compares the cached balance with the sum of the ledger
func (s *walletService) Reconcile(ctx context.Context, tenantID string) (*models.ReconciliationResult, error) {
	unlock := s.locks.Lock(tenantID)
	defer unlock()

	wallet, err := s.walletRepo.GetByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	ledger, err := s.walletRepo.LedgerBalance(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger: %w", err)
	}

	result := &models.ReconciliationResult{
		TenantID:      tenantID,
		CachedBalance: wallet.Balance,
		LedgerBalance: ledger,
		Consistent:    wallet.Balance.Equal(ledger),
		CheckedAt:     time.Now().UTC(),
	}
	if !result.Consistent {
		metrics.RecordReconciliationMismatch()
		s.logger.WithFields(logrus.Fields{
			"tenant_id":      tenantID,
			"cached_balance": wallet.Balance.String(),
			"ledger_balance": ledger.String(),
		}).Error("wallet balance does not match ledger")
	}
	return result, nil
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"verimeter/internal/models"
	"verimeter/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// walletRecord owns one tenant's wallet and ledger. mu plays the role of the
// row lock taken by SELECT ... FOR UPDATE.
type walletRecord struct {
	mu         sync.Mutex
	created    bool
	wallet     models.Wallet
	ledger     []*models.WalletTransaction
	references map[string]struct{}
}

type WalletStore struct {
	mu      sync.RWMutex
	records map[string]*walletRecord
}

func NewWalletRepo() *WalletStore {
	return &WalletStore{records: make(map[string]*walletRecord)}
}

var _ repositories.WalletRepository = (*WalletStore)(nil)

func (s *WalletStore) record(tenantID string, create bool) *walletRecord {
	s.mu.RLock()
	rec, ok := s.records[tenantID]
	s.mu.RUnlock()
	if ok || !create {
		return rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok = s.records[tenantID]; ok {
		return rec
	}
	rec = &walletRecord{references: make(map[string]struct{})}
	s.records[tenantID] = rec
	return rec
}

func (s *WalletStore) GetByTenant(_ context.Context, tenantID string) (*models.Wallet, error) {
	rec := s.record(tenantID, false)
	if rec == nil {
		return nil, repositories.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.created {
		return nil, repositories.ErrNotFound
	}
	w := rec.wallet
	return &w, nil
}

func (s *WalletStore) List(_ context.Context, limit, offset int) ([]*models.Wallet, error) {
	s.mu.RLock()
	recs := make([]*walletRecord, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	var out []*models.Wallet
	for _, rec := range recs {
		rec.mu.Lock()
		if rec.created {
			w := rec.wallet
			out = append(out, &w)
		}
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return paginate(out, limit, offset), nil
}

func (s *WalletStore) ApplyTransaction(_ context.Context, tenantID string, opts repositories.WalletLockOptions, fn repositories.WalletMutateFunc) (*models.WalletTransaction, error) {
	rec := s.record(tenantID, opts.CreateIfMissing)
	if rec == nil {
		return nil, repositories.ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	working := rec.wallet
	if !rec.created {
		if !opts.CreateIfMissing {
			return nil, repositories.ErrNotFound
		}
		now := time.Now().UTC()
		working = models.Wallet{
			ID:        uuid.New(),
			TenantID:  tenantID,
			Balance:   decimal.Zero,
			Currency:  opts.Currency,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	locked := working
	record, err := fn(&locked)
	if err != nil {
		return nil, err
	}

	refKey := ""
	if record.ReferenceID != nil && *record.ReferenceID != "" {
		refKey = string(record.Type) + ":" + *record.ReferenceID
		if _, dup := rec.references[refKey]; dup {
			return nil, repositories.ErrDuplicateReference
		}
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.WalletID = working.ID
	record.TenantID = tenantID
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	working.Balance = record.NewBalance
	working.UpdatedAt = record.CreatedAt
	rec.wallet = working
	rec.created = true
	stored := *record
	rec.ledger = append(rec.ledger, &stored)
	if refKey != "" {
		rec.references[refKey] = struct{}{}
	}
	return record, nil
}

func (s *WalletStore) GetTransactionByReference(_ context.Context, tenantID string, txType models.TransactionType, referenceID string) (*models.WalletTransaction, error) {
	rec := s.record(tenantID, false)
	if rec == nil {
		return nil, repositories.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	for _, t := range rec.ledger {
		if t.Type == txType && t.ReferenceID != nil && *t.ReferenceID == referenceID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *WalletStore) ListTransactions(_ context.Context, tenantID string, limit, offset int) ([]*models.WalletTransaction, error) {
	rec := s.record(tenantID, false)
	if rec == nil {
		return nil, nil
	}
	rec.mu.Lock()
	out := make([]*models.WalletTransaction, 0, len(rec.ledger))
	// newest first
	for i := len(rec.ledger) - 1; i >= 0; i-- {
		cp := *rec.ledger[i]
		out = append(out, &cp)
	}
	rec.mu.Unlock()
	return paginate(out, limit, offset), nil
}

func (s *WalletStore) LedgerBalance(_ context.Context, tenantID string) (decimal.Decimal, error) {
	rec := s.record(tenantID, false)
	if rec == nil {
		return decimal.Zero, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	sum := decimal.Zero
	for _, t := range rec.ledger {
		sum = sum.Add(t.SignedAmount())
	}
	return sum, nil
}

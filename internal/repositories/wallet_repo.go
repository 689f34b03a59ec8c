package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"verimeter/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletMutateFunc receives the locked wallet and returns the ledger row to
// append. PreviousBalance and NewBalance must be filled by the callback;
// returning an error rolls the whole mutation back.
type WalletMutateFunc func(wallet *models.Wallet) (*models.WalletTransaction, error)

// WalletLockOptions controls what happens when the tenant has no wallet yet
type WalletLockOptions struct {
	CreateIfMissing bool
	Currency        string
}

type WalletRepository interface {
	GetByTenant(ctx context.Context, tenantID string) (*models.Wallet, error)
	List(ctx context.Context, limit, offset int) ([]*models.Wallet, error)

	// ApplyTransaction locks the tenant's wallet, runs fn, then persists the
	// new balance and the ledger row as one unit.
	ApplyTransaction(ctx context.Context, tenantID string, opts WalletLockOptions, fn WalletMutateFunc) (*models.WalletTransaction, error)

	GetTransactionByReference(ctx context.Context, tenantID string, txType models.TransactionType, referenceID string) (*models.WalletTransaction, error)
	ListTransactions(ctx context.Context, tenantID string, limit, offset int) ([]*models.WalletTransaction, error)

	// LedgerBalance replays the ledger for the tenant
	LedgerBalance(ctx context.Context, tenantID string) (decimal.Decimal, error)
}

type walletRepo struct {
	db DB
}

func NewWalletRepo(db DB) WalletRepository {
	return &walletRepo{db: db}
}

const walletColumns = `id, tenant_id, balance, currency, created_at, updated_at`

const transactionColumns = `id, wallet_id, tenant_id, type, amount, previous_balance, new_balance, service_code, reference_id, actor_id, metadata, created_at`

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	w := &models.Wallet{}
	err := row.Scan(&w.ID, &w.TenantID, &w.Balance, &w.Currency, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *walletRepo) GetByTenant(ctx context.Context, tenantID string) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE tenant_id = $1`
	w, err := scanWallet(r.db.QueryRow(ctx, query, tenantID))
	if err != nil {
		return nil, notFound(err)
	}
	return w, nil
}

func (r *walletRepo) List(ctx context.Context, limit, offset int) ([]*models.Wallet, error) {
	query := `
		SELECT ` + walletColumns + `
		FROM wallets
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []*models.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func (r *walletRepo) lockWallet(ctx context.Context, tx pgx.Tx, tenantID string, opts WalletLockOptions) (*models.Wallet, error) {
	lockQuery := `SELECT ` + walletColumns + ` FROM wallets WHERE tenant_id = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, lockQuery, tenantID))
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}
	if !opts.CreateIfMissing {
		return nil, ErrNotFound
	}

	// A concurrent creator may win the insert; the second lock read sees its row.
	_, err = tx.Exec(ctx, `
		INSERT INTO wallets (id, tenant_id, balance, currency, created_at, updated_at)
		VALUES ($1, $2, 0, $3, NOW(), NOW())
		ON CONFLICT (tenant_id) DO NOTHING
	`, uuid.New(), tenantID, opts.Currency)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	w, err = scanWallet(tx.QueryRow(ctx, lockQuery, tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock new wallet: %w", err)
	}
	return w, nil
}

func (r *walletRepo) ApplyTransaction(ctx context.Context, tenantID string, opts WalletLockOptions, fn WalletMutateFunc) (*models.WalletTransaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	wallet, err := r.lockWallet(ctx, tx, tenantID, opts)
	if err != nil {
		return nil, err
	}

	record, err := fn(wallet)
	if err != nil {
		return nil, err
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.WalletID = wallet.ID
	record.TenantID = wallet.TenantID
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	var metadata []byte
	if record.Metadata != nil {
		metadata, err = json.Marshal(record.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE wallets
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`, record.NewBalance, wallet.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		record.ID,
		record.WalletID,
		record.TenantID,
		record.Type,
		record.Amount,
		record.PreviousBalance,
		record.NewBalance,
		record.ServiceCode,
		record.ReferenceID,
		record.ActorID,
		metadata,
		record.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateReference
		}
		return nil, fmt.Errorf("failed to insert wallet transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit wallet transaction: %w", err)
	}
	return record, nil
}

func scanTransaction(row pgx.Row) (*models.WalletTransaction, error) {
	t := &models.WalletTransaction{}
	var metadata []byte
	err := row.Scan(
		&t.ID,
		&t.WalletID,
		&t.TenantID,
		&t.Type,
		&t.Amount,
		&t.PreviousBalance,
		&t.NewBalance,
		&t.ServiceCode,
		&t.ReferenceID,
		&t.ActorID,
		&metadata,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return t, nil
}

func (r *walletRepo) GetTransactionByReference(ctx context.Context, tenantID string, txType models.TransactionType, referenceID string) (*models.WalletTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM wallet_transactions
		WHERE tenant_id = $1 AND type = $2 AND reference_id = $3
	`
	t, err := scanTransaction(r.db.QueryRow(ctx, query, tenantID, txType, referenceID))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func (r *walletRepo) ListTransactions(ctx context.Context, tenantID string, limit, offset int) ([]*models.WalletTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM wallet_transactions
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*models.WalletTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *walletRepo) LedgerBalance(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN type = 'DEDUCTION' THEN -amount ELSE amount END), 0)
		FROM wallet_transactions
		WHERE tenant_id = $1
	`
	var balance decimal.Decimal
	if err := r.db.QueryRow(ctx, query, tenantID).Scan(&balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits stored for balances,
// amounts and prices (NUMERIC(20, 6))
const MoneyScale = 6

// FitsMoneyScale reports whether d is stored without rounding
func FitsMoneyScale(d decimal.Decimal) bool {
	return d.Truncate(MoneyScale).Equal(d)
}

type Wallet struct {
	ID        uuid.UUID       `json:"wallet_id" db:"id"`
	TenantID  string          `json:"tenant_id" db:"tenant_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Currency  string          `json:"currency" db:"currency"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// TransactionType is the kind of ledger movement
type TransactionType string

const (
	TransactionDeduction TransactionType = "DEDUCTION"
	TransactionTopup     TransactionType = "TOPUP"
	TransactionRefund    TransactionType = "REFUND"
)

// WalletTransaction is an append-only ledger row. The wallet balance is a
// cached projection of these rows.
type WalletTransaction struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	WalletID        uuid.UUID       `json:"wallet_id" db:"wallet_id"`
	TenantID        string          `json:"tenant_id" db:"tenant_id"`
	Type            TransactionType `json:"type" db:"type"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	PreviousBalance decimal.Decimal `json:"previous_balance" db:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance" db:"new_balance"`
	ServiceCode     *string         `json:"service_code,omitempty" db:"service_code"`
	ReferenceID     *string         `json:"reference_id,omitempty" db:"reference_id"`
	ActorID         string          `json:"actor_id" db:"actor_id"`
	Metadata        JSONB           `json:"metadata,omitempty" db:"metadata"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// SignedAmount is the effect of the transaction on the balance
func (t *WalletTransaction) SignedAmount() decimal.Decimal {
	if t.Type == TransactionDeduction {
		return t.Amount.Neg()
	}
	return t.Amount
}

// ReconciliationResult compares the cached balance to the ledger
type ReconciliationResult struct {
	TenantID      string          `json:"tenant_id"`
	CachedBalance decimal.Decimal `json:"cached_balance"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	Consistent    bool            `json:"consistent"`
	CheckedAt     time.Time       `json:"checked_at"`
}

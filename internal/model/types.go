package model

import (
	"fmt"
	"time"
)

// Account is a single-owner ledger account.
type Account struct {
	ID      string `json:"id"` // Content-addressed, see AccountID
	Owner   string `json:"owner"`
	Balance uint64 `json:"balance"`
}

// TxKind is the direction of a ledger transaction.
type TxKind string

const (
	TxDeposit  TxKind = "deposit"
	TxWithdraw TxKind = "withdraw"
)

// Valid reports whether k is one of the kinds the transactions table accepts.
func (k TxKind) Valid() bool {
	return k == TxDeposit || k == TxWithdraw
}

// ParseTxKind converts a stored tx_type into a TxKind.
func ParseTxKind(s string) (TxKind, error) {
	k := TxKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown transaction kind %q", s)
	}
	return k, nil
}

// Transaction is an immutable audit row keyed to an account.
type Transaction struct {
	ID        int64     `json:"tx_id"` // AUTOINCREMENT, monotonic
	AccountID string    `json:"account_id"`
	Kind      TxKind    `json:"tx_type"`
	Amount    uint64    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

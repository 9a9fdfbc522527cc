// Package model holds the shared record types of the contract ledger and the
// content-addressed account identity.
//
// All other internal packages import model; model imports nothing internal.
//
// Key constraints:
//   - Amounts and balances are uint64; the store enforces >= 0 with CHECKs
//   - Account IDs are a pure function of the owner name (see AccountID)
//   - Transactions and migration records use snake_case JSON tags
package model

// Package ledger implements the single-owner contract account and its
// append-only transaction log.
//
// An Account is loaded (or created with a zero balance) for an owner name.
// Deposits and withdrawals update the balance and append a transaction row
// in one store transaction: either both are committed or neither is.
//
// Business-rule outcomes (a zero amount, insufficient funds) are reported on
// the Receipt and are not errors. Integrity and persistence failures are
// returned as *Error and leave the account reloaded from the store.
package ledger

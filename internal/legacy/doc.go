// Package legacy moves data out of the pre-ledger tables (old_contract and
// old_transactions, keyed by integer ids) into the content-addressed
// accounts and transactions tables.
//
// The transform is registered with the migration engine under HandlerKey and
// runs as a single store transaction: either every legacy row is carried
// over or none is.
package legacy

// Package store provides SQLite-backed durable storage for the contract ledger.
//
// The store holds three tables:
//   - accounts: one row per owner, keyed by the content-addressed account ID
//   - transactions: append-only audit rows (never updated or deleted)
//   - migrations: one tracking row per attempted migration unit
//
// # Atomic Mutations
//
// A balance change and its transaction row are written in one SQL
// transaction (see InTx). If the append fails the balance write is rolled
// back with it, so a committed balance always has its log row.
//
// # Database Configuration
//
//   - WAL mode
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: transactions.account_id must reference an account
//   - a single open connection: all access is serialised through it
//
// The store is opened once per process and passed to the components that
// need it; nothing in this package keeps a global connection.
package store

// Package harness runs ledger and migration scenarios described in YAML and
// compares their traces against golden files.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	setup_sql: |
//	  CREATE TABLE old_contract (id INTEGER PRIMARY KEY, owner TEXT, balance INTEGER);
//	steps:
//	  - action: deposit
//	    owner: alice
//	    amount: 100
//	    expect:
//	      outcome: applied
//	      balance: 100
//	assertions:
//	  - type: final_balance
//	    owner: alice
//	    balance: 100
//
// Step actions are status, deposit, withdraw, history, migrate and reset.
// The owner defaults to "alice".
//
// # Assertion Types
//
//   - trace_contains: an action (optionally for an owner) appears in the trace
//   - trace_order: actions appear in the given order
//   - trace_count: an action appears exactly N times
//   - final_balance: the stored balance of an owner
//   - history: the kinds and amounts of an owner's history, newest first
//   - migration_status: the recorded status of a migration unit
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory database with
// testutil.DeterministicClock timestamps and sequential run ids, so its trace
// is identical across runs and can be checked with RunWithGolden.
package harness

// Package migrate applies an ordered, declared list of migration units and
// records each unit's outcome in the migrations tracking table.
//
// Units come from a manifest (YAML or CUE). A unit is either a SQL script,
// run as one batch inside a store transaction, or a native handler looked up
// by key in a Registry built at compile time. A script that begins its own
// transaction with BEGIN runs as written instead. A unit with any recorded row is
// not attempted again until Reset deletes that row.
package migrate

package model

import "time"

// MigrationStatus is the recorded outcome of a migration unit.
type MigrationStatus string

const (
	MigrationPending MigrationStatus = "pending"
	MigrationSuccess MigrationStatus = "success"
	MigrationFailed  MigrationStatus = "failed"
	MigrationSkipped MigrationStatus = "skipped"
)

// Terminal reports whether the status ends a unit's attempt.
// Any terminal status means the unit is not attempted again until reset.
func (s MigrationStatus) Terminal() bool {
	switch s {
	case MigrationSuccess, MigrationFailed, MigrationSkipped:
		return true
	}
	return false
}

// MigrationRecord is a row of the migrations tracking table.
type MigrationRecord struct {
	Filename  string          `json:"filename"` // Unit name, primary key
	AppliedAt time.Time       `json:"applied_at"`
	Status    MigrationStatus `json:"status"`
	Error     *string         `json:"error,omitempty"`
	Duration  int64           `json:"duration_ms"`
	RunID     string          `json:"run_id,omitempty"` // UUIDv7 of the apply run
}

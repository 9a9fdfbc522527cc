package cli

import (
	"github.com/roach88/contract/internal/ledger"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric  = "E001" // Generic/unknown error
	ErrCodeConfig   = "E002" // Config file unreadable or invalid
	ErrCodeDatabase = "E003" // Database could not be opened
	ErrCodeFlags    = "E004" // Missing or invalid command flags

	// Ledger errors
	ErrCodeValidation  = "E101" // Invalid owner or amount
	ErrCodeIntegrity   = "E102" // Missing account row or constraint violation
	ErrCodePersistence = "E103" // Store read or write failed

	// Migration errors
	ErrCodeManifest    = "E201" // Manifest unreadable or invalid
	ErrCodeUnknownUnit = "E202" // --filename names a unit not in the manifest
	ErrCodeUnitFailed  = "E203" // At least one unit failed
	ErrCodeTracking    = "E204" // Migrations table could not be read or written
)

// reportLedgerError maps a ledger error to an error code and exit code.
// Validation errors come from user input; everything else is unrecoverable.
func reportLedgerError(f *OutputFormatter, message string, err error) error {
	switch {
	case ledger.IsValidation(err):
		return reportError(f, ExitCommandError, ErrCodeValidation, message, err)
	case ledger.IsIntegrity(err):
		return reportError(f, ExitFailure, ErrCodeIntegrity, message, err)
	case ledger.IsPersistence(err):
		return reportError(f, ExitFailure, ErrCodePersistence, message, err)
	default:
		return reportError(f, ExitFailure, ErrCodeGeneric, message, err)
	}
}

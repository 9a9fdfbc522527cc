package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]uint64{"balance": 40}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]interface{}{"balance": float64(40)}, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error(ErrCodeDatabase, "cannot open database", "disk I/O error"))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeDatabase, resp.Error.Code)
	assert.Equal(t, "cannot open database", resp.Error.Message)
	assert.Equal(t, "disk I/O error", resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error(ErrCodeManifest, "invalid manifest", nil))
	assert.Equal(t, "Error [E201]: invalid manifest\n", buf.String())

	buf.Reset()
	require.NoError(t, formatter.Error(ErrCodeManifest, "invalid manifest", "units: required"))
	assert.Contains(t, buf.String(), "Details: units: required\n")
}

func TestOutputFormatter_Line(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	formatter.Line(levelOK, "✓ %s (%dms)", "unit", 3)
	formatter.Line(levelFail, "✗ %s", "other")
	assert.Equal(t, "✓ unit (3ms)\n✗ other\n", buf.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		want    string
	}{
		{"verbose on", true, "opening contract.db\n"},
		{"verbose off", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: tt.verbose}

			formatter.VerboseLog("opening %s", "contract.db")
			assert.Empty(t, out.String())
			assert.Equal(t, tt.want, errOut.String())
		})
	}
}

func TestExitError(t *testing.T) {
	cause := errors.New("boom")
	err := WrapExitError(ExitFailure, "E103: write failed", cause)

	assert.Equal(t, "E103: write failed: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("outer: %w", err)))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.False(t, IsReported(err))
}

func TestReportError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := reportError(formatter, ExitCommandError, ErrCodeFlags, "--amount is required", nil)

	assert.True(t, IsReported(err))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "Error [E004]: --amount is required\n", buf.String())
}

// Package pipelineerr classifies the error kinds the script-to-scene
// pipeline can raise and maps them to the process exit codes the CLI
// contract promises.
package pipelineerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInputInvalid marks a malformed SRT file. Terminal.
	ErrInputInvalid = errors.New("input invalid")
	// ErrTransientAPI marks a 429/5xx/timeout response already exhausted
	// by the LLM client's own retry budget.
	ErrTransientAPI = errors.New("transient api failure")
	// ErrUnrecoverableAPI marks a non-429 4xx response.
	ErrUnrecoverableAPI = errors.New("unrecoverable api failure")
	// ErrCoverageIrreparable marks a validator that exhausted its repair budget.
	ErrCoverageIrreparable = errors.New("coverage irreparable")
	// ErrParse marks LLM output that could not be interpreted as the
	// stage's required structure.
	ErrParse = errors.New("parse error")
	// ErrTerminal marks any other error that must abort the run.
	ErrTerminal = errors.New("terminal failure")
)

// Wrap builds an error carrying stage/operation context while tagging it
// with the given marker for later classification. marker should be one
// of the sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTerminal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ExitCode maps a run's terminal error to the CLI exit code contract:
// 0 success, 2 input invalid, 3 any other terminal failure.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInputInvalid):
		return 2
	default:
		return 3
	}
}

// Tolerable reports whether a stage that tolerates partial failures
// (stages 5, 6, 7 per the failure semantics table) should record this
// error against a single task and continue, rather than surface it as a
// stage-wide failure.
func Tolerable(err error) bool {
	return errors.Is(err, ErrUnrecoverableAPI) || errors.Is(err, ErrParse) || errors.Is(err, ErrTransientAPI)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}

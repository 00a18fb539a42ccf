// Package pipeline drives the seven-stage script-to-scene pipeline
// (Stage Runner, C5) over a single project's workbook.
package pipeline

import (
	"context"
	"log/slog"

	"scenepipe/internal/config"
	"scenepipe/internal/llm"
	"scenepipe/internal/srt"
	"scenepipe/internal/workbook"
)

// State is the artifact every stage handler reads from and writes to:
// the project's parsed SRT, its workbook, its LLM client, and the
// resolved configuration driving batch sizes and fan-out.
type State struct {
	ProjectCode string
	Config      *config.Config
	Store       *workbook.Store
	LLM         *llm.Client
	Logger      *slog.Logger
	Entries     []srt.Entry
}

// Health reports a stage handler's readiness, mirroring the shape a
// status command renders per project.
type Health struct {
	Name    string
	Healthy bool
	Detail  string
}

// Handler is the contract every stage implements: Prepare validates
// preconditions and reads required inputs, Execute performs the LLM
// calls and writes outputs, HealthCheck reports whether the stage's
// dependencies (LLM reachability, workbook readability) are sound.
type Handler interface {
	Prepare(ctx context.Context, st *State) error
	Execute(ctx context.Context, st *State) error
	HealthCheck(ctx context.Context, st *State) Health
}

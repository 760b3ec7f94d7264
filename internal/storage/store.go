package storage

import (
	"context"
	"time"

	"pyfreeze/internal/graph"
)

// Run describes one bundling run.
type Run struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Platform  string    `json:"platform"`
	OutputDir string    `json:"output_dir"`
	Warnings  int       `json:"warnings"`
}

// RunStore persists the module graph of each run.
type RunStore interface {
	// SaveRun stores run and a snapshot of g. An empty run ID is filled in.
	SaveRun(ctx context.Context, run *Run, g *graph.Graph) error

	// LoadGraph rebuilds the graph recorded for runID.
	LoadGraph(ctx context.Context, runID string) (*graph.Graph, error)

	// LatestRun returns the most recent run, or ErrNoRuns.
	LatestRun(ctx context.Context) (*Run, error)

	Close() error
}

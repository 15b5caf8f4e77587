package jobs

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"hotspot_service/internal/domain/model"
)

type SnapshotLister interface {
	ListByRange(ctx context.Context, from, to time.Time) ([]model.FeatureSnapshot, error)
}

type ExportOptions struct {
	From   time.Time
	To     time.Time
	Center model.Point
	// Limit caps the exported rows; zero or negative exports everything.
	Limit int
}

type ExportResult struct {
	Rows  int
	Total int
}

type Exporter struct {
	snapshots SnapshotLister
	log       zerolog.Logger
}

func NewExporter(snapshots SnapshotLister, log zerolog.Logger) *Exporter {
	return &Exporter{snapshots: snapshots, log: log.With().Str("job", "export").Logger()}
}

// Export writes the snapshots with target_at in [From, To) as a training CSV.
func (e *Exporter) Export(ctx context.Context, w io.Writer, opts ExportOptions) (ExportResult, error) {
	if opts.Center == (model.Point{}) {
		opts.Center = model.DefaultCenter
	}
	snaps, err := e.snapshots.ListByRange(ctx, opts.From, opts.To)
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to list snapshots: %w", err)
	}
	total := len(snaps)
	if opts.Limit > 0 && len(snaps) > opts.Limit {
		snaps = snaps[:opts.Limit]
	}
	if err := WriteDataset(w, snaps, opts.Center); err != nil {
		return ExportResult{}, err
	}

	e.log.Info().
		Int("rows", len(snaps)).
		Int("total", total).
		Time("from", opts.From).
		Time("to", opts.To).
		Msg("dataset exported")
	return ExportResult{Rows: len(snaps), Total: total}, nil
}

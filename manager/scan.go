package manager

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/frobware/go-sharedpages"
	"github.com/frobware/go-sharedpages/frameindex"
	"github.com/frobware/go-sharedpages/procfs"
	"github.com/frobware/go-sharedpages/report"
)

// ScanOptions selects what Scan covers.
type ScanOptions struct {
	// PIDs restricts the scan to these processes. Empty means every
	// process in the source.
	PIDs []sharedpages.PID
	// SharedOnly drops ranges owned by a single process.
	SharedOnly bool
}

// Scan builds the frame index for the selected processes and returns
// it as a sealed snapshot.
func (m *Manager) Scan(ctx context.Context, opts ScanOptions) (*report.Snapshot, error) {
	pids := opts.PIDs
	if len(pids) == 0 {
		var err error
		pids, err = m.ListPIDs(ctx)
		if err != nil {
			return nil, err
		}
	}

	m.logger.Info("scanning processes", "count", len(pids), "concurrency", m.opts.Concurrency)
	start := time.Now()

	result, err := m.BuildIndex(ctx, pids)
	if err != nil {
		return nil, err
	}

	ranges := frameindex.Compress(result.Index)
	if opts.SharedOnly {
		ranges = frameindex.SharedOnly(ranges)
	}

	processes := make([]sharedpages.Process, 0, len(result.Scanned))
	for _, pid := range result.Scanned {
		processes = append(processes, m.source.Process(ctx, pid))
	}

	failures := make([]report.Failure, 0, len(result.Failures))
	for _, f := range result.Failures {
		failures = append(failures, report.FailureFrom(f))
	}

	snap := &report.Snapshot{
		ID:             uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
		Host:           report.CurrentHost(),
		PageSize:       m.opts.PageSize,
		ByteOrder:      procfs.ByteOrderName(m.source.ByteOrder()),
		SharedOnly:     opts.SharedOnly,
		ResidentPages:  result.ResidentPages,
		ZeroFramePages: result.ZeroFramePages,
		Processes:      processes,
		Failures:       failures,
		Ranges:         ranges,
	}
	snap.Seal()

	m.logger.Info("scan complete",
		"snapshot", snap.ID,
		"ranges", len(ranges),
		"elapsed", time.Since(start))

	return snap, nil
}

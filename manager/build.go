package manager

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/frobware/go-sharedpages"
	"github.com/frobware/go-sharedpages/frameindex"
)

// BuildResult is the outcome of BuildIndex.
type BuildResult struct {
	// Index maps every resident frame to its owners.
	Index frameindex.Index
	// Scanned lists the processes that contributed to Index, ascending.
	Scanned []sharedpages.PID
	// Failures lists the processes that were skipped, ordered by PID.
	Failures []sharedpages.ErrProcessScan
	// ResidentPages counts present virtual pages across all scanned
	// processes.
	ResidentPages uint64
	// ZeroFramePages counts present pages whose frame number read as
	// zero. The kernel hides frame numbers from callers without
	// CAP_SYS_ADMIN by reporting zero.
	ZeroFramePages uint64
}

type partial struct {
	index     frameindex.Index
	resident  uint64
	zeroFrame uint64
	failure   *sharedpages.ErrProcessScan
	scanned   bool
}

// BuildIndex scans pids concurrently and reduces their partial
// indices into one. Duplicate pids are scanned once.
//
// Under FailureSkip the returned error is non-nil only when ctx is
// cancelled. Under FailureAbort it is the first
// sharedpages.ErrProcessScan encountered.
func (m *Manager) BuildIndex(ctx context.Context, pids []sharedpages.PID) (*BuildResult, error) {
	pids = slices.Clone(pids)
	slices.Sort(pids)
	pids = slices.Compact(pids)

	parts := make([]partial, len(pids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Concurrency)

	for i, pid := range pids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			part, err := m.scanProcess(gctx, pid)
			if err == nil {
				parts[i] = part
				return nil
			}

			var scanErr sharedpages.ErrProcessScan
			if !errors.As(err, &scanErr) {
				return err
			}
			m.logFailure(gctx, scanErr)
			if m.opts.OnError == FailureAbort {
				return scanErr
			}
			parts[i] = partial{failure: &scanErr}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BuildResult{}
	indices := make([]frameindex.Index, 0, len(parts))
	for i, part := range parts {
		switch {
		case part.failure != nil:
			result.Failures = append(result.Failures, *part.failure)
		case part.scanned:
			result.Scanned = append(result.Scanned, pids[i])
			indices = append(indices, part.index)
			result.ResidentPages += part.resident
			result.ZeroFramePages += part.zeroFrame
		}
	}
	slices.SortFunc(result.Failures, func(a, b sharedpages.ErrProcessScan) int {
		return cmp.Compare(a.PID, b.PID)
	})
	result.Index = frameindex.Reduce(indices...)

	if result.ZeroFramePages > 0 {
		m.logger.Warn("frame numbers read as zero; run with CAP_SYS_ADMIN for accurate sharing",
			"zero_frame_pages", result.ZeroFramePages,
			"resident_pages", result.ResidentPages)
	}
	m.logger.Info("built frame index",
		"processes", len(result.Scanned),
		"failures", len(result.Failures),
		"frames", len(result.Index))

	return result, nil
}

// scanProcess produces the partial index of one process.
func (m *Manager) scanProcess(ctx context.Context, pid sharedpages.PID) (partial, error) {
	pages, err := m.ProcessPages(ctx, pid)
	if err != nil {
		return partial{}, err
	}

	part := partial{scanned: true}
	var frames []uint64
	for _, mp := range pages {
		for _, status := range mp.Pages {
			pfn, ok := status.Frame()
			if !ok {
				continue
			}
			part.resident++
			if pfn == 0 {
				part.zeroFrame++
			}
			frames = append(frames, pfn)
		}
	}
	part.index = frameindex.Partial(pid, slices.Values(frames))
	return part, nil
}

func (m *Manager) logFailure(ctx context.Context, err sharedpages.ErrProcessScan) {
	level := slog.LevelWarn
	if err.Kind == sharedpages.KindExited {
		level = slog.LevelDebug
	}
	m.logger.Log(ctx, level, "process scan failed",
		"pid", err.PID,
		"kind", err.Kind,
		"policy", m.opts.OnError,
		"error", err.Err)
}

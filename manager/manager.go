// Package manager orchestrates a scan: it enumerates processes,
// decodes their pagemaps, fans the per-process work out to a bounded
// pool, reduces the partial frame indices and hands the compressed
// result to the report and store layers.
//
// # Concurrency Model
//
// Each process is scanned by exactly one worker, which produces an
// immutable partial index and stores it in a slot owned by that
// process. No index is shared between workers while they run; the
// partials are reduced only after every worker has finished. Because
// frameindex.Reduce is commutative and associative, the result does
// not depend on the order in which workers complete.
//
// # Failure Policy
//
// Processes routinely exit between enumeration and scan, and an
// unprivileged caller cannot read every pagemap. Under FailureSkip a
// failing process is logged, recorded in the result and left out of
// the index. Under FailureAbort the first failure cancels the
// remaining workers and is returned.
package manager

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"strings"

	"github.com/frobware/go-sharedpages"
	"github.com/frobware/go-sharedpages/logging"
	"github.com/frobware/go-sharedpages/procfs"
	"github.com/frobware/go-sharedpages/report"
)

// Source is the view of the proc filesystem the manager scans.
// *procfs.Scanner implements it.
type Source interface {
	PIDs(ctx context.Context) iter.Seq2[sharedpages.PID, error]
	Mappings(pid sharedpages.PID) ([]sharedpages.Mapping, error)
	OpenPagemap(pid sharedpages.PID) (*procfs.Pagemap, error)
	Process(ctx context.Context, pid sharedpages.PID) sharedpages.Process
	// Exited reports whether pid has exited or become a zombie.
	Exited(ctx context.Context, pid sharedpages.PID) bool
	ByteOrder() binary.ByteOrder
}

// Store persists snapshots. *sqlite.Store implements it.
type Store interface {
	SaveSnapshot(ctx context.Context, s *report.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*report.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]report.Summary, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

// ErrNoStore is returned by snapshot operations on a Manager created
// without a store.
var ErrNoStore = errors.New("no snapshot store configured")

// FailurePolicy decides what happens when one process cannot be scanned.
type FailurePolicy string

const (
	// FailureSkip records the failure and continues with the other
	// processes.
	FailureSkip FailurePolicy = "skip"
	// FailureAbort stops the scan at the first failure.
	FailureAbort FailurePolicy = "abort"
)

// ParseFailurePolicy parses "skip" or "abort". Empty means skip.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case FailureSkip, "":
		return FailureSkip, nil
	case FailureAbort:
		return FailureAbort, nil
	}
	return "", fmt.Errorf("unknown failure policy %q: must be skip or abort", s)
}

// Options configures a Manager.
type Options struct {
	// PageSize is the host page size in bytes. Required.
	PageSize uint64
	// Concurrency bounds the number of processes scanned at once.
	// Zero means runtime.GOMAXPROCS(0).
	Concurrency int
	// OnError is the failure policy. Empty means FailureSkip.
	OnError FailurePolicy
}

// Manager scans processes and manages the resulting snapshots.
type Manager struct {
	source Source
	store  Store
	opts   Options
	logger *slog.Logger
}

// New creates a Manager reading from source. store may be nil when
// snapshots are never persisted.
func New(source Source, store Store, opts Options, logger *slog.Logger) (*Manager, error) {
	if source == nil {
		return nil, errors.New("source is required")
	}
	if opts.PageSize == 0 || opts.PageSize&(opts.PageSize-1) != 0 {
		return nil, fmt.Errorf("page size must be a power of two, got %d", opts.PageSize)
	}
	if opts.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency must be >= 0, got %d", opts.Concurrency)
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	policy, err := ParseFailurePolicy(string(opts.OnError))
	if err != nil {
		return nil, err
	}
	opts.OnError = policy

	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		source: source,
		store:  store,
		opts:   opts,
		logger: logger.With("component", logging.ComponentManager),
	}, nil
}

// Options returns the effective options, with defaults applied.
func (m *Manager) Options() Options {
	return m.opts
}

// ListPIDs returns every process in the source, in enumeration order.
func (m *Manager) ListPIDs(ctx context.Context) ([]sharedpages.PID, error) {
	var pids []sharedpages.PID
	for pid, err := range m.source.PIDs(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list processes: %w", err)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

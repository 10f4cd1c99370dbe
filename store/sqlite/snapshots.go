package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/frobware/go-sharedpages"
	"github.com/frobware/go-sharedpages/frameindex"
	"github.com/frobware/go-sharedpages/report"
	"github.com/frobware/go-sharedpages/store"
)

// timeLayout is fixed-width so that created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SaveSnapshot stores s and all of its processes, failures and
// ranges in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap *report.Snapshot) error {
	start := time.Now()
	err := s.RunInTransaction(ctx, func(tx *Store) error {
		return tx.saveSnapshot(ctx, snap)
	})
	if err != nil {
		s.logger.Debug("sql", "op", "SaveSnapshot", "id", snap.ID, "duration_ms", msec(time.Since(start)), "error", err)
		return err
	}
	s.logger.Debug("sql", "op", "SaveSnapshot", "id", snap.ID, "ranges", len(snap.Ranges), "duration_ms", msec(time.Since(start)))
	return nil
}

func (s *Store) saveSnapshot(ctx context.Context, snap *report.Snapshot) error {
	summary := snap.Summary()
	_, err := s.stmtInsertSnapshot.ExecContext(ctx,
		snap.ID,
		snap.CreatedAt.UTC().Format(timeLayout),
		snap.Host.Hostname,
		snap.Host.KernelRelease,
		snap.Host.Machine,
		int64(snap.PageSize),
		snap.ByteOrder,
		snap.SharedOnly,
		int64(snap.ResidentPages),
		int64(snap.ZeroFramePages),
		summary.Processes,
		summary.Failures,
		summary.Ranges,
		int64(summary.TotalPages),
		int64(summary.SharedPages),
		snap.Digest,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot %s: %w", snap.ID, err)
	}

	for _, p := range snap.Processes {
		if _, err := s.stmtInsertProcess.ExecContext(ctx, snap.ID, int64(p.PID), p.Cmdline); err != nil {
			return fmt.Errorf("insert process %d: %w", p.PID, err)
		}
	}
	for _, f := range snap.Failures {
		if _, err := s.stmtInsertFailure.ExecContext(ctx, snap.ID, int64(f.PID), string(f.Kind), f.Message); err != nil {
			return fmt.Errorf("insert failure %d: %w", f.PID, err)
		}
	}
	for i, r := range snap.Ranges {
		if _, err := s.stmtInsertRange.ExecContext(ctx, snap.ID, i, int64(r.From), int64(r.To), formatOwners(r.Owners)); err != nil {
			return fmt.Errorf("insert range %d: %w", i, err)
		}
	}
	return nil
}

// GetSnapshot loads the snapshot with the given ID.
// Returns store.ErrNotFound if it does not exist.
func (s *Store) GetSnapshot(ctx context.Context, id string) (*report.Snapshot, error) {
	var snap *report.Snapshot
	err := s.RunInTransaction(ctx, func(tx *Store) error {
		var err error
		snap, err = tx.getSnapshot(ctx, id)
		return err
	})
	return snap, err
}

func (s *Store) getSnapshot(ctx context.Context, id string) (*report.Snapshot, error) {
	start := time.Now()
	snap := &report.Snapshot{ID: id}

	var createdAt string
	var pageSize, resident, zeroFrame int64
	err := s.stmtGetSnapshot.QueryRowContext(ctx, id).Scan(
		&createdAt,
		&snap.Host.Hostname,
		&snap.Host.KernelRelease,
		&snap.Host.Machine,
		&pageSize,
		&snap.ByteOrder,
		&snap.SharedOnly,
		&resident,
		&zeroFrame,
		&snap.Digest,
	)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug("sql", "stmt", "GetSnapshot", "args", []any{id}, "duration_ms", msec(time.Since(start)), "rows", 0)
		return nil, fmt.Errorf("snapshot %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", id, err)
	}

	if snap.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("snapshot %s: parse created_at %q: %w", id, createdAt, err)
	}
	snap.PageSize = uint64(pageSize)
	snap.ResidentPages = uint64(resident)
	snap.ZeroFramePages = uint64(zeroFrame)

	if snap.Processes, err = s.getProcesses(ctx, id); err != nil {
		return nil, err
	}
	if snap.Failures, err = s.getFailures(ctx, id); err != nil {
		return nil, err
	}
	if snap.Ranges, err = s.getRanges(ctx, id); err != nil {
		return nil, err
	}

	s.logger.Debug("sql", "stmt", "GetSnapshot", "args", []any{id}, "duration_ms", msec(time.Since(start)), "ranges", len(snap.Ranges))
	return snap, nil
}

func (s *Store) getProcesses(ctx context.Context, id string) ([]sharedpages.Process, error) {
	rows, err := s.stmtGetProcesses.QueryContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get processes of %s: %w", id, err)
	}
	defer rows.Close()

	processes := []sharedpages.Process{}
	for rows.Next() {
		var pid int64
		var p sharedpages.Process
		if err := rows.Scan(&pid, &p.Cmdline); err != nil {
			return nil, fmt.Errorf("scan process: %w", err)
		}
		p.PID = sharedpages.PID(pid)
		processes = append(processes, p)
	}
	return processes, rows.Err()
}

func (s *Store) getFailures(ctx context.Context, id string) ([]report.Failure, error) {
	rows, err := s.stmtGetFailures.QueryContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get failures of %s: %w", id, err)
	}
	defer rows.Close()

	var failures []report.Failure
	for rows.Next() {
		var pid int64
		var kind string
		var f report.Failure
		if err := rows.Scan(&pid, &kind, &f.Message); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.PID = sharedpages.PID(pid)
		f.Kind = sharedpages.ErrorKind(kind)
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

func (s *Store) getRanges(ctx context.Context, id string) ([]frameindex.PageRange, error) {
	rows, err := s.stmtGetRanges.QueryContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get ranges of %s: %w", id, err)
	}
	defer rows.Close()

	var ranges []frameindex.PageRange
	for rows.Next() {
		var from, to int64
		var owners string
		if err := rows.Scan(&from, &to, &owners); err != nil {
			return nil, fmt.Errorf("scan range: %w", err)
		}
		set, err := parseOwners(owners)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", id, err)
		}
		ranges = append(ranges, frameindex.PageRange{From: uint64(from), To: uint64(to), Owners: set})
	}
	return ranges, rows.Err()
}

// ListSnapshots returns a summary of every snapshot, newest first.
func (s *Store) ListSnapshots(ctx context.Context) ([]report.Summary, error) {
	start := time.Now()
	rows, err := s.stmtListSnapshots.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var summaries []report.Summary
	for rows.Next() {
		var sum report.Summary
		var createdAt string
		var total, shared int64
		if err := rows.Scan(&sum.ID, &createdAt, &sum.Hostname, &sum.Processes, &sum.Failures,
			&sum.Ranges, &total, &shared, &sum.Digest); err != nil {
			return nil, fmt.Errorf("scan snapshot summary: %w", err)
		}
		if sum.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("snapshot %s: parse created_at %q: %w", sum.ID, createdAt, err)
		}
		sum.TotalPages = uint64(total)
		sum.SharedPages = uint64(shared)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.logger.Debug("sql", "stmt", "ListSnapshots", "duration_ms", msec(time.Since(start)), "rows", len(summaries))
	return summaries, nil
}

// DeleteSnapshot removes a snapshot and everything recorded with it.
// Returns store.ErrNotFound if it does not exist.
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	res, err := s.stmtDeleteSnapshot.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("snapshot %s: %w", id, store.ErrNotFound)
	}
	s.logger.Debug("sql", "stmt", "DeleteSnapshot", "args", []any{id}, "rows", n)
	return nil
}

func formatOwners(owners frameindex.OwnerSet) string {
	parts := make([]string, len(owners))
	for i, pid := range owners {
		parts[i] = pid.String()
	}
	return strings.Join(parts, ",")
}

func parseOwners(s string) (frameindex.OwnerSet, error) {
	if s == "" {
		return nil, errors.New("range with no owners")
	}
	fields := strings.Split(s, ",")
	pids := make([]sharedpages.PID, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid owner %q: %w", f, err)
		}
		pids = append(pids, sharedpages.PID(v))
	}
	return frameindex.NewOwnerSet(pids...), nil
}

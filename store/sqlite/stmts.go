package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// prepareStatements prepares every SQL statement the store uses.
func (s *Store) prepareStatements(ctx context.Context) error {
	prepare := func(dst **sql.Stmt, name, query string) error {
		stmt, err := s.db.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", name, err)
		}
		*dst = stmt
		return nil
	}

	const sqlInsertSnapshot = `
		INSERT INTO snapshots
		(id, created_at, hostname, kernel_release, machine, page_size, byte_order,
		 shared_only, resident_pages, zero_frame_pages, process_count, failure_count,
		 range_count, total_pages, shared_pages, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if err := prepare(&s.stmtInsertSnapshot, "InsertSnapshot", sqlInsertSnapshot); err != nil {
		return err
	}

	const sqlInsertProcess = "INSERT INTO snapshot_processes (snapshot_id, pid, cmdline) VALUES (?, ?, ?)"
	if err := prepare(&s.stmtInsertProcess, "InsertProcess", sqlInsertProcess); err != nil {
		return err
	}

	const sqlInsertFailure = "INSERT INTO snapshot_failures (snapshot_id, pid, kind, message) VALUES (?, ?, ?, ?)"
	if err := prepare(&s.stmtInsertFailure, "InsertFailure", sqlInsertFailure); err != nil {
		return err
	}

	const sqlInsertRange = "INSERT INTO snapshot_ranges (snapshot_id, seq, frame_from, frame_to, owners) VALUES (?, ?, ?, ?, ?)"
	if err := prepare(&s.stmtInsertRange, "InsertRange", sqlInsertRange); err != nil {
		return err
	}

	const sqlGetSnapshot = `
		SELECT created_at, hostname, kernel_release, machine, page_size, byte_order,
		       shared_only, resident_pages, zero_frame_pages, digest
		FROM snapshots
		WHERE id = ?`
	if err := prepare(&s.stmtGetSnapshot, "GetSnapshot", sqlGetSnapshot); err != nil {
		return err
	}

	const sqlGetProcesses = "SELECT pid, cmdline FROM snapshot_processes WHERE snapshot_id = ? ORDER BY pid"
	if err := prepare(&s.stmtGetProcesses, "GetProcesses", sqlGetProcesses); err != nil {
		return err
	}

	const sqlGetFailures = "SELECT pid, kind, message FROM snapshot_failures WHERE snapshot_id = ? ORDER BY pid"
	if err := prepare(&s.stmtGetFailures, "GetFailures", sqlGetFailures); err != nil {
		return err
	}

	const sqlGetRanges = "SELECT frame_from, frame_to, owners FROM snapshot_ranges WHERE snapshot_id = ? ORDER BY seq"
	if err := prepare(&s.stmtGetRanges, "GetRanges", sqlGetRanges); err != nil {
		return err
	}

	const sqlListSnapshots = `
		SELECT id, created_at, hostname, process_count, failure_count, range_count,
		       total_pages, shared_pages, digest
		FROM snapshots
		ORDER BY created_at DESC, id`
	if err := prepare(&s.stmtListSnapshots, "ListSnapshots", sqlListSnapshots); err != nil {
		return err
	}

	const sqlDeleteSnapshot = "DELETE FROM snapshots WHERE id = ?"
	return prepare(&s.stmtDeleteSnapshot, "DeleteSnapshot", sqlDeleteSnapshot)
}

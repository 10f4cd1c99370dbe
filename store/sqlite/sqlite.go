// Package sqlite stores scan snapshots in SQLite.
//
// The default build uses the pure-Go modernc.org/sqlite driver; build
// with -tags cgo_sqlite to use mattn/go-sqlite3 instead.
//
// # Calling Conventions
//
// Methods execute against s.conn, which is either the underlying
// *sql.DB (autocommit) or a *sql.Tx. SaveSnapshot writes several
// tables and always runs inside RunInTransaction, so a snapshot is
// either stored completely or not at all. Reads are single statements
// except GetSnapshot, which reads within a transaction to see a
// consistent snapshot row and its children.
//
// # Prepared Statements
//
// All queries are prepared once when the store is opened. Inside a
// transaction, tx.StmtContext binds the master statements to the
// transaction without reparsing them.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/frobware/go-sharedpages/logging"
)

// msec formats a duration as milliseconds with 3 decimal places.
func msec(d time.Duration) string {
	return fmt.Sprintf("%.3f", float64(d.Microseconds())/1000)
}

//go:embed schema.sql
var schemaSQL string

// dbConn abstracts *sql.DB and *sql.Tx for query execution.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a SQLite snapshot store.
type Store struct {
	db     *sql.DB
	conn   dbConn
	logger *slog.Logger

	stmtInsertSnapshot *sql.Stmt
	stmtInsertProcess  *sql.Stmt
	stmtInsertFailure  *sql.Stmt
	stmtInsertRange    *sql.Stmt
	stmtGetSnapshot    *sql.Stmt
	stmtGetProcesses   *sql.Stmt
	stmtGetFailures    *sql.Stmt
	stmtGetRanges      *sql.Stmt
	stmtListSnapshots  *sql.Stmt
	stmtDeleteSnapshot *sql.Stmt
}

// dsn builds a DSN from a path and pragma key-value pairs using the
// parameter syntax of the compiled-in driver.
func dsn(path string, pragmas [][2]string) string {
	if len(pragmas) == 0 {
		return path
	}
	params := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		params = append(params, pragmaParam(p[0], p[1]))
	}
	return path + "?" + strings.Join(params, "&")
}

// New opens (creating if needed) the snapshot database at dbPath.
func New(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", logging.ComponentStore, "db", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open(driverName, dsn(dbPath, [][2]string{{"journal_mode", "WAL"}, {"foreign_keys", "1"}}))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s, err := open(ctx, db, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("opened database", "path", dbPath)
	return s, nil
}

// NewInMemory creates an in-memory store for testing.
func NewInMemory(ctx context.Context, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", logging.ComponentStore, "db", ":memory:")

	db, err := sql.Open(driverName, dsn(":memory:", [][2]string{{"foreign_keys", "1"}}))
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// Every connection to :memory: is a distinct database.
	db.SetMaxOpenConns(1)

	s, err := open(ctx, db, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("opened in-memory database")
	return s, nil
}

func open(ctx context.Context, db *sql.DB, logger *slog.Logger) (*Store, error) {
	s := &Store{db: db, conn: db, logger: logger}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := s.prepareStatements(ctx); err != nil {
		s.closeStatements()
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return s, nil
}

// Close closes all prepared statements and the database connection.
func (s *Store) Close() error {
	s.closeStatements()
	return s.db.Close()
}

func (s *Store) statements() []*sql.Stmt {
	return []*sql.Stmt{
		s.stmtInsertSnapshot,
		s.stmtInsertProcess,
		s.stmtInsertFailure,
		s.stmtInsertRange,
		s.stmtGetSnapshot,
		s.stmtGetProcesses,
		s.stmtGetFailures,
		s.stmtGetRanges,
		s.stmtListSnapshots,
		s.stmtDeleteSnapshot,
	}
}

// closeStatements closes all prepared statements. Close errors are
// ignored because the database is about to be closed.
func (s *Store) closeStatements() {
	for _, stmt := range s.statements() {
		if stmt != nil {
			stmt.Close()
		}
	}
}

// RunInTransaction executes fn within a database transaction. If fn
// returns nil the transaction commits; otherwise it rolls back.
func (s *Store) RunInTransaction(ctx context.Context, fn func(*Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	txStore := &Store{
		db:                 s.db,
		conn:               tx,
		logger:             s.logger,
		stmtInsertSnapshot: tx.StmtContext(ctx, s.stmtInsertSnapshot),
		stmtInsertProcess:  tx.StmtContext(ctx, s.stmtInsertProcess),
		stmtInsertFailure:  tx.StmtContext(ctx, s.stmtInsertFailure),
		stmtInsertRange:    tx.StmtContext(ctx, s.stmtInsertRange),
		stmtGetSnapshot:    tx.StmtContext(ctx, s.stmtGetSnapshot),
		stmtGetProcesses:   tx.StmtContext(ctx, s.stmtGetProcesses),
		stmtGetFailures:    tx.StmtContext(ctx, s.stmtGetFailures),
		stmtGetRanges:      tx.StmtContext(ctx, s.stmtGetRanges),
		stmtListSnapshots:  tx.StmtContext(ctx, s.stmtListSnapshots),
		stmtDeleteSnapshot: tx.StmtContext(ctx, s.stmtDeleteSnapshot),
	}

	if err := fn(txStore); err != nil {
		return err
	}
	return tx.Commit()
}

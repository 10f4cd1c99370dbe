// Package cli implements the sharedpages command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-sharedpages"
	"github.com/frobware/go-sharedpages/config"
	"github.com/frobware/go-sharedpages/logging"
	"github.com/frobware/go-sharedpages/manager"
	"github.com/frobware/go-sharedpages/procfs"
	"github.com/frobware/go-sharedpages/store/sqlite"
)

// CLI is the root command structure for sharedpages.
type CLI struct {
	Config      string `name:"config" help:"Config file path." default:"${default_config_path}"`
	Log         string `name:"log" help:"Log spec (e.g., 'info,manager=debug'). Takes precedence over ${log_env}."`
	ProcRoot    string `name:"proc-root" help:"Proc filesystem root (overrides scan.proc_root)." placeholder:"DIR"`
	Concurrency *int   `name:"concurrency" short:"j" help:"Processes scanned in parallel, 0 for one per CPU (overrides scan.concurrency)." placeholder:"N"`
	OnError     string `name:"on-error" help:"Per-process failure policy: skip or abort (overrides scan.on_error)."`
	ByteOrder   string `name:"byte-order" help:"Pagemap byte order: native, little or big (overrides scan.byte_order)."`
	DB          string `name:"db" help:"Snapshot database path (overrides store.path)." placeholder:"PATH"`

	Scan     ScanCmd     `cmd:"" help:"Scan processes and report shared physical frame ranges."`
	Pages    PagesCmd    `cmd:"" help:"Show per-mapping page residency of one process."`
	Maps     MapsCmd     `cmd:"" help:"List the memory mappings of one process."`
	Snapshot SnapshotCmd `cmd:"" help:"Inspect saved snapshots."`
	Export   ExportCmd   `cmd:"" help:"Export a saved snapshot to a file."`

	// Out receives command output. Defaults to os.Stdout.
	Out io.Writer `kong:"-"`
}

// KongOptions returns the Kong configuration options for the CLI.
func KongOptions() []kong.Option {
	return []kong.Option{
		kong.Name("sharedpages"),
		kong.Description("Report which processes share physical memory frames."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.TypeMapper(reflect.TypeOf(sharedpages.PID(0)), pidMapper()),
		kong.Vars{
			"default_config_path": config.DefaultConfigPath,
			"log_env":             logging.EnvVar,
		},
	}
}

// LoadConfig loads the config file and applies flag overrides.
func (c *CLI) LoadConfig() (config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return cfg, err
	}

	if c.ProcRoot != "" {
		cfg.Scan.ProcRoot = c.ProcRoot
	}
	if c.Concurrency != nil {
		cfg.Scan.Concurrency = *c.Concurrency
	}
	if c.OnError != "" {
		cfg.Scan.OnError = c.OnError
	}
	if c.ByteOrder != "" {
		cfg.Scan.ByteOrder = c.ByteOrder
	}
	if c.DB != "" {
		cfg.Store.Path = c.DB
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Logger creates a logger for CLI commands. Output goes to stderr so
// reports on stdout stay machine readable.
func (c *CLI) Logger(cfg config.Config) (*slog.Logger, error) {
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	return logging.New(logging.Options{
		CLISpec:    c.Log,
		EnvSpec:    os.Getenv(logging.EnvVar),
		ConfigSpec: cfg.Logging.ToSpec(),
		Format:     format,
		Output:     os.Stderr,
	})
}

// session bundles what a command needs to talk to the proc
// filesystem and the snapshot store.
type session struct {
	cfg config.Config
	// logger is tagged with the cli component.
	logger  *slog.Logger
	scanner *procfs.Scanner
	manager *manager.Manager
	store   *sqlite.Store
}

// Close releases the snapshot store, if one was opened.
func (s *session) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// openSession resolves configuration and builds a manager. The
// snapshot database is opened only when withStore is set, so scans
// that are not saved never touch it.
func (c *CLI) openSession(ctx context.Context, withStore bool) (*session, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := c.Logger(cfg)
	if err != nil {
		return nil, err
	}

	order, err := procfs.ResolveByteOrder(cfg.Scan.ByteOrder)
	if err != nil {
		return nil, err
	}

	procLogger := logger.With("component", logging.ComponentProcfs)
	scanner := procfs.NewScanner(cfg.Scan.ProcRoot).
		WithByteOrder(order).
		WithOnMalformed(func(path string, err error) {
			procLogger.Warn("skipping malformed proc entry", "path", path, "error", err)
		})

	pageSize, err := procfs.PageSize()
	if err != nil {
		return nil, err
	}

	policy, err := manager.ParseFailurePolicy(cfg.Scan.OnError)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: logger.With("component", logging.ComponentCLI), scanner: scanner}

	var st manager.Store
	if withStore {
		s.store, err = sqlite.New(ctx, cfg.Store.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
		st = s.store
	}

	s.manager, err = manager.New(scanner, st, manager.Options{
		PageSize:    pageSize,
		Concurrency: cfg.Scan.Concurrency,
		OnError:     policy,
	}, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.logger.Debug("session ready",
		"proc_root", scanner.Root(),
		"byte_order", procfs.ByteOrderName(order),
		"page_size", pageSize,
		"store", withStore)
	return s, nil
}

func (c *CLI) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// WriteOut writes p to the command output. A short write without an
// error is reported as io.ErrShortWrite.
func (c *CLI) WriteOut(p []byte) error {
	n, err := c.out().Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}

// PrintOut writes s to the command output.
func (c *CLI) PrintOut(s string) error {
	return c.WriteOut([]byte(s))
}

// PrintOutf formats according to format and writes the result to the
// command output.
func (c *CLI) PrintOutf(format string, args ...any) error {
	return c.PrintOut(fmt.Sprintf(format, args...))
}

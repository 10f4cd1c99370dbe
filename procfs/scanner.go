// Package procfs reads the per-process memory interfaces the kernel
// exposes under /proc: the maps listing, the pagemap records and the
// set of live process directories.
package procfs

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/shirou/gopsutil/v4/common"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/frobware/go-sharedpages"
)

// DefaultRoot is the usual proc mount point.
const DefaultRoot = "/proc"

// Scanner provides read-only access to a proc filesystem rooted at an
// arbitrary directory, so tests and containers (/host/proc) can point
// it elsewhere.
type Scanner struct {
	root        string
	order       binary.ByteOrder
	onMalformed func(path string, err error)
}

// NewScanner creates a Scanner for the given proc root. Pagemap
// records are decoded in the host's native byte order unless
// WithByteOrder says otherwise.
func NewScanner(root string) *Scanner {
	if root == "" {
		root = DefaultRoot
	}
	return &Scanner{root: root, order: nativeOrder()}
}

// WithByteOrder sets the byte order used to decode pagemap records.
// Returns the Scanner for chaining.
func (s *Scanner) WithByteOrder(order binary.ByteOrder) *Scanner {
	s.order = order
	return s
}

// WithOnMalformed sets a callback for proc entries that look like
// process directories but cannot be parsed. Returns the Scanner for
// chaining.
func (s *Scanner) WithOnMalformed(f func(path string, err error)) *Scanner {
	s.onMalformed = f
	return s
}

func (s *Scanner) reportMalformed(path string, err error) {
	if s.onMalformed != nil {
		s.onMalformed(path, err)
	}
}

// Root returns the proc root directory.
func (s *Scanner) Root() string { return s.root }

// ByteOrder returns the byte order used to decode pagemap records.
func (s *Scanner) ByteOrder() binary.ByteOrder { return s.order }

// MapsPath returns {root}/{pid}/maps.
func (s *Scanner) MapsPath(pid sharedpages.PID) string {
	return filepath.Join(s.root, pid.String(), "maps")
}

// PagemapPath returns {root}/{pid}/pagemap.
func (s *Scanner) PagemapPath(pid sharedpages.PID) string {
	return filepath.Join(s.root, pid.String(), "pagemap")
}

// PIDs returns an iterator over the process directories in the proc
// root. Entries whose names are not decimal numbers are ignored;
// numeric names that do not fit a PID are reported via OnMalformed.
// Errors are yielded only for failures that prevent enumeration.
func (s *Scanner) PIDs(ctx context.Context) iter.Seq2[sharedpages.PID, error] {
	return func(yield func(sharedpages.PID, error) bool) {
		entries, err := os.ReadDir(s.root)
		if err != nil {
			yield(0, fmt.Errorf("read dir %s: %w", s.root, err))
			return
		}

		for _, entry := range entries {
			if ctx.Err() != nil {
				yield(0, ctx.Err())
				return
			}

			if !entry.IsDir() {
				continue
			}

			name := entry.Name()
			if !isDigits(name) {
				continue
			}

			pid, err := sharedpages.ParsePID(name)
			if err != nil {
				s.reportMalformed(filepath.Join(s.root, name), err)
				continue
			}

			if !yield(pid, nil) {
				return
			}
		}
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Mappings reads and parses {root}/{pid}/maps.
func (s *Scanner) Mappings(pid sharedpages.PID) ([]sharedpages.Mapping, error) {
	path := s.MapsPath(pid)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	mappings, err := ReadMappings(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mappings, nil
}

// OpenPagemap opens {root}/{pid}/pagemap for decoding. The caller
// must Close the result.
func (s *Scanner) OpenPagemap(pid sharedpages.PID) (*Pagemap, error) {
	path := s.PagemapPath(pid)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Pagemap{PagemapReader: NewPagemapReader(f, path, s.order), f: f}, nil
}

// psProcess returns a gopsutil handle for pid and a context that
// points gopsutil at the scanner's proc root. gopsutil addresses
// processes by int32, so larger pids are rejected rather than wrapped
// onto another process.
func (s *Scanner) psProcess(ctx context.Context, pid sharedpages.PID) (*process.Process, context.Context, error) {
	if pid > math.MaxInt32 {
		return nil, nil, fmt.Errorf("pid %d out of range for process metadata", pid)
	}
	ctx = context.WithValue(ctx, common.EnvKey, common.EnvMap{common.HostProcEnvKey: s.root})
	return &process.Process{Pid: int32(pid)}, ctx, nil
}

// Cmdline returns the command line of pid for display, with arguments
// separated by spaces.
func (s *Scanner) Cmdline(ctx context.Context, pid sharedpages.PID) (string, error) {
	p, ctx, err := s.psProcess(ctx, pid)
	if err != nil {
		return "", err
	}
	cmdline, err := p.CmdlineWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("read cmdline of pid %d: %w", pid, err)
	}
	return cmdline, nil
}

// Exited reports whether pid has gone from the proc root or is a
// zombie. Both leave maps empty and make pagemap reads return EOF, so
// callers use this to tell an exit apart from a genuine read fault. A
// status file that cannot be read while the process directory is
// still present does not count as an exit.
func (s *Scanner) Exited(ctx context.Context, pid sharedpages.PID) bool {
	if _, err := os.Stat(filepath.Join(s.root, pid.String())); errors.Is(err, fs.ErrNotExist) {
		return true
	}

	p, ctx, err := s.psProcess(ctx, pid)
	if err != nil {
		return false
	}
	status, err := p.StatusWithContext(ctx)
	if err != nil {
		// The process may have been reaped since the stat above.
		_, statErr := os.Stat(filepath.Join(s.root, pid.String()))
		return errors.Is(statErr, fs.ErrNotExist)
	}
	return slices.Contains(status, process.Zombie)
}

// Process returns a sharedpages.Process for pid. A command line that
// cannot be read is left empty; it never fails the scan.
func (s *Scanner) Process(ctx context.Context, pid sharedpages.PID) sharedpages.Process {
	cmdline, err := s.Cmdline(ctx, pid)
	if err != nil {
		return sharedpages.Process{PID: pid}
	}
	return sharedpages.Process{PID: pid, Cmdline: cmdline}
}

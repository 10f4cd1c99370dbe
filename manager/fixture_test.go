package manager_test

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frobware/go-sharedpages"
	"github.com/frobware/go-sharedpages/manager"
	"github.com/frobware/go-sharedpages/procfs"
	"github.com/frobware/go-sharedpages/store/sqlite"
)

const pageSize = 4096

// testLogger returns a logger for tests. By default it discards all output.
// Set SHAREDPAGES_TEST_VERBOSE=1 to enable logging.
func testLogger() *slog.Logger {
	if os.Getenv("SHAREDPAGES_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func present(pfn uint64) sharedpages.PageStatus {
	return sharedpages.PageStatus(1<<63 | pfn)
}

const swapped = sharedpages.PageStatus(1 << 62)

// procFixture is a fake proc tree with per-process maps and pagemap
// files laid out the way the kernel does.
type procFixture struct {
	t    *testing.T
	root string
}

func newProcFixture(t *testing.T) *procFixture {
	t.Helper()
	return &procFixture{t: t, root: t.TempDir()}
}

func (f *procFixture) dir(pid sharedpages.PID) string {
	f.t.Helper()
	dir := filepath.Join(f.root, pid.String())
	require.NoError(f.t, os.MkdirAll(dir, 0o755))
	return dir
}

// writeMaps writes the maps file of pid, one mapping per line.
func (f *procFixture) writeMaps(pid sharedpages.PID, lines ...string) {
	f.t.Helper()
	path := filepath.Join(f.dir(pid), "maps")
	require.NoError(f.t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

// writePagemap writes a pagemap for pid in which virtual page number
// vpn holds pages[vpn]. The file is sized to cover the highest page.
func (f *procFixture) writePagemap(pid sharedpages.PID, pages map[uint64]sharedpages.PageStatus) {
	f.t.Helper()
	var size uint64
	for vpn := range pages {
		size = max(size, (vpn+1)*procfs.RecordSize)
	}
	buf := make([]byte, size)
	for vpn, status := range pages {
		binary.LittleEndian.PutUint64(buf[vpn*procfs.RecordSize:], uint64(status))
	}
	require.NoError(f.t, os.WriteFile(filepath.Join(f.dir(pid), "pagemap"), buf, 0o644))
}

func (f *procFixture) writeCmdline(pid sharedpages.PID, args ...string) {
	f.t.Helper()
	data := strings.Join(args, "\x00") + "\x00"
	require.NoError(f.t, os.WriteFile(filepath.Join(f.dir(pid), "cmdline"), []byte(data), 0o644))
}

// writeStatus writes a status file for pid whose State line carries
// the given single-letter process state.
func (f *procFixture) writeStatus(pid sharedpages.PID, state string) {
	f.t.Helper()
	data := "Name:\tworker\nState:\t" + state + "\n"
	require.NoError(f.t, os.WriteFile(filepath.Join(f.dir(pid), "status"), []byte(data), 0o644))
}

// writeEmptyMaps writes the empty maps file the kernel shows for
// kernel threads and zombies.
func (f *procFixture) writeEmptyMaps(pid sharedpages.PID) {
	f.t.Helper()
	require.NoError(f.t, os.WriteFile(filepath.Join(f.dir(pid), "maps"), nil, 0o644))
}

// exitingSource removes a process's directory as soon as its pagemap
// has been opened, which is what a process exiting mid-scan looks like
// from the reader's side.
type exitingSource struct {
	*procfs.Scanner
}

func (s exitingSource) OpenPagemap(pid sharedpages.PID) (*procfs.Pagemap, error) {
	pm, err := s.Scanner.OpenPagemap(pid)
	if err != nil {
		return nil, err
	}
	if err := os.RemoveAll(filepath.Join(s.Root(), pid.String())); err != nil {
		pm.Close()
		return nil, err
	}
	return pm, nil
}

// mapsLine renders an anonymous private mapping of [start, end).
func mapsLine(start, end uint64, path string) string {
	m := sharedpages.Mapping{
		Range:       sharedpages.AddressRange{Start: start, End: end},
		Permissions: "rw-p",
		Device:      "00:00",
		Path:        path,
	}
	return m.String()
}

func (f *procFixture) scanner() *procfs.Scanner {
	return procfs.NewScanner(f.root).WithByteOrder(binary.LittleEndian)
}

// addSharingPair creates pid 100 and pid 200. 100 maps frames
// 0x10..0x12 at pages 1..3; 200 maps frames 0x11 and 0x12 at pages
// 16 and 17, plus a swapped page 18.
func (f *procFixture) addSharingPair() {
	f.writeMaps(100, mapsLine(0x1000, 0x4000, "/usr/lib/libc.so.6"))
	f.writePagemap(100, map[uint64]sharedpages.PageStatus{
		1: present(0x10),
		2: present(0x11),
		3: present(0x12),
	})
	f.writeCmdline(100, "sleep", "100")

	f.writeMaps(200,
		mapsLine(0x10000, 0x13000, "/usr/lib/libc.so.6"),
		"ffffffffff600000-ffffffffff601000 --xp 00000000 00:00 0                  [vsyscall]",
	)
	f.writePagemap(200, map[uint64]sharedpages.PageStatus{
		16: present(0x11),
		17: present(0x12),
		18: swapped,
	})
	f.writeCmdline(200, "cat")
}

func newManager(t *testing.T, f *procFixture, policy manager.FailurePolicy, store manager.Store) *manager.Manager {
	t.Helper()
	mgr, err := manager.New(f.scanner(), store, manager.Options{
		PageSize:    pageSize,
		Concurrency: 2,
		OnError:     policy,
	}, testLogger())
	require.NoError(t, err)
	return mgr
}

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewInMemory(context.Background(), testLogger())
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { s.Close() })
	return s
}

package cli_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-sharedpages"
	"github.com/frobware/go-sharedpages/cmd/sharedpages/cli"
	"github.com/frobware/go-sharedpages/procfs"
	"github.com/frobware/go-sharedpages/report"
)

// env is a fake proc tree plus private config and database paths.
type env struct {
	t        *testing.T
	root     string
	config   string
	db       string
	pageSize uint64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ps, err := procfs.PageSize()
	require.NoError(t, err)
	dir := t.TempDir()
	e := &env{
		t:        t,
		root:     filepath.Join(dir, "proc"),
		config:   filepath.Join(dir, "absent.toml"),
		db:       filepath.Join(dir, "snapshots.db"),
		pageSize: ps,
	}
	require.NoError(t, os.MkdirAll(e.root, 0o755))
	return e
}

// addProcess writes maps and a native-order pagemap for pid. The
// process has one mapping starting at virtual page vpn, and frames[i]
// backs page vpn+i; a zero frame leaves the page non-resident.
func (e *env) addProcess(pid sharedpages.PID, path string, vpn uint64, frames ...uint64) sharedpages.Mapping {
	e.t.Helper()
	dir := filepath.Join(e.root, pid.String())
	require.NoError(e.t, os.MkdirAll(dir, 0o755))

	m := sharedpages.Mapping{
		Range: sharedpages.AddressRange{
			Start: vpn * e.pageSize,
			End:   (vpn + uint64(len(frames))) * e.pageSize,
		},
		Permissions: "r-xp",
		Device:      "08:01",
		Inode:       4242,
		Path:        path,
	}
	require.NoError(e.t, os.WriteFile(filepath.Join(dir, "maps"), []byte(m.String()+"\n"), 0o644))

	buf := make([]byte, (vpn+uint64(len(frames)))*procfs.RecordSize)
	for i, pfn := range frames {
		if pfn == 0 {
			continue
		}
		binary.NativeEndian.PutUint64(buf[(vpn+uint64(i))*procfs.RecordSize:], 1<<63|pfn)
	}
	require.NoError(e.t, os.WriteFile(filepath.Join(dir, "pagemap"), buf, 0o644))
	return m
}

func (e *env) addSharingPair() {
	e.addProcess(100, "/usr/lib/libc.so.6", 1, 0x10, 0x11, 0x12)
	e.addProcess(200, "/usr/lib/libc.so.6", 16, 0x11, 0x12, 0)
}

// run parses and executes one command line against the environment.
func (e *env) run(args ...string) (string, error) {
	e.t.Helper()
	var out bytes.Buffer
	c := cli.CLI{Out: &out}

	opts := append(cli.KongOptions(), kong.Exit(func(int) { e.t.Fatalf("unexpected exit for %v", args) }))
	parser, err := kong.New(&c, opts...)
	require.NoError(e.t, err)

	full := append([]string{"--config", e.config, "--proc-root", e.root, "--db", e.db}, args...)
	kctx, err := parser.Parse(full)
	if err != nil {
		return "", err
	}
	kctx.BindTo(context.Background(), (*context.Context)(nil))
	err = kctx.Run(&c)
	return out.String(), err
}

func (e *env) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err, "%v", args)
	return out
}

func TestScan_JSON(t *testing.T) {
	e := newEnv(t)
	e.addSharingPair()

	out := e.mustRun("scan", "-o", "json")

	var snap report.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.NoError(t, snap.Verify())
	assert.Equal(t, e.pageSize, snap.PageSize)
	assert.Len(t, snap.Processes, 2)
	require.Len(t, snap.Ranges, 2)
	assert.Equal(t, uint64(0x11), snap.Ranges[1].From)
	assert.Equal(t, uint64(0x13), snap.Ranges[1].To)
}

func TestScan_SharedTable(t *testing.T) {
	e := newEnv(t)
	e.addSharingPair()

	out := e.mustRun("scan", "--shared")
	assert.Contains(t, out, "SHARED RANGES")
	assert.Contains(t, out, "100,200")
	assert.Contains(t, out, "2 scanned, 0 failed")
}

func TestScan_SelectedPIDs(t *testing.T) {
	e := newEnv(t)
	e.addSharingPair()

	out := e.mustRun("scan", "200", "-o", "jsonpath={.processes[*].pid}")
	assert.Equal(t, "200\n", out)
}

func TestScan_FailurePolicies(t *testing.T) {
	e := newEnv(t)
	e.addSharingPair()

	out := e.mustRun("scan", "100", "999", "-o", "jsonpath={.failures[0].kind}")
	assert.Equal(t, "exited\n", out)

	for _, policy := range []string{"abort", "ABORT"} {
		_, err := e.run("--on-error", policy, "scan", "100", "999")
		var scanErr sharedpages.ErrProcessScan
		require.True(t, errors.As(err, &scanErr), "--on-error %s: got %v", policy, err)
		assert.Equal(t, sharedpages.PID(999), scanErr.PID)
	}
}

func TestScan_RejectsBadFlags(t *testing.T) {
	e := newEnv(t)

	_, err := e.run("--byte-order", "middle", "scan")
	assert.ErrorContains(t, err, "invalid configuration")

	_, err = e.run("--concurrency=-1", "scan")
	assert.ErrorContains(t, err, "invalid configuration")

	_, err = e.run("pages", "0")
	assert.Error(t, err)
}

func TestSnapshotLifecycle(t *testing.T) {
	e := newEnv(t)
	e.addSharingPair()

	assert.Equal(t, "No snapshots found\n", e.mustRun("snapshot", "list"))

	id := strings.TrimSpace(e.mustRun("scan", "--save", "-o", "jsonpath={.id}"))
	require.NotEmpty(t, id)

	out := e.mustRun("snapshot", "list", "-o", "json")
	var summaries []report.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, id, summaries[0].ID)
	assert.Equal(t, uint64(2), summaries[0].SharedPages)

	out = e.mustRun("snapshot", "show", id)
	assert.Contains(t, out, "SNAPSHOT  "+id)

	file := filepath.Join(t.TempDir(), "snap.json.xz")
	assert.Contains(t, e.mustRun("export", id, file), "Exported snapshot "+id)

	out = e.mustRun("snapshot", "show", "--file", file, "-o", "jsonpath={.id}")
	assert.Equal(t, id+"\n", out)

	assert.Contains(t, e.mustRun("snapshot", "delete", id), "Deleted snapshot "+id)
	_, err := e.run("snapshot", "show", id)
	assert.Error(t, err)

	assert.Contains(t, e.mustRun("snapshot", "import", file), "Imported snapshot "+id)
	assert.Equal(t, id+"\n", e.mustRun("snapshot", "show", id, "-o", "jsonpath={.id}"))
}

func TestScan_Export(t *testing.T) {
	e := newEnv(t)
	e.addSharingPair()

	file := filepath.Join(t.TempDir(), "scan.json")
	e.mustRun("scan", "--export", file)

	snap, err := report.ReadFile(file)
	require.NoError(t, err)
	assert.Len(t, snap.Ranges, 2)

	_, err = os.Stat(e.db)
	assert.ErrorIs(t, err, os.ErrNotExist, "scans that are not saved leave the database alone")
}

func TestMaps_RoundTrip(t *testing.T) {
	e := newEnv(t)
	m := e.addProcess(300, "/opt/app/my lib.so", 4, 0x99)

	assert.Equal(t, m.String()+"\n", e.mustRun("maps", "300"))

	out := e.mustRun("maps", "300", "-o", "jsonpath={[0].path}")
	assert.Equal(t, "/opt/app/my lib.so\n", out)
}

func TestPages_Table(t *testing.T) {
	e := newEnv(t)
	e.addProcess(300, "/bin/app", 4, 0x20, 0x21, 0, 0x23)

	out := e.mustRun("pages", "300")
	assert.Contains(t, out, "PROCESS  300  1 mappings, 4 pages")
	assert.Contains(t, out, "0-1,3")
	assert.Contains(t, out, "/bin/app")
}

func TestPages_MissingProcess(t *testing.T) {
	e := newEnv(t)

	_, err := e.run("pages", "4242")
	var scanErr sharedpages.ErrProcessScan
	require.True(t, errors.As(err, &scanErr))
	assert.Equal(t, sharedpages.KindExited, scanErr.Kind)
}

package cli_test

import (
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-sharedpages/cmd/sharedpages/cli"
)

// failingWriter accepts budget bytes, then fails with failErr. With
// shortWrites set it instead accepts one byte per call and reports no
// error, which is how a misbehaving writer signals a short write.
type failingWriter struct {
	budget      int
	failErr     error
	shortWrites bool
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.shortWrites {
		return min(len(p), 1), nil
	}
	if len(p) <= w.budget {
		w.budget -= len(p)
		return len(p), nil
	}
	n := w.budget
	w.budget = 0
	return n, w.failErr
}

func TestCLIOutput_Errors(t *testing.T) {
	tests := []struct {
		name  string
		w     *failingWriter
		write func(c *cli.CLI) error
		want  error
	}{
		{
			name:  "write fails immediately",
			w:     &failingWriter{failErr: syscall.ENOSPC},
			write: func(c *cli.CLI) error { return c.WriteOut([]byte("x")) },
			want:  syscall.ENOSPC,
		},
		{
			name:  "partial write then failure",
			w:     &failingWriter{budget: 3, failErr: syscall.ENOSPC},
			write: func(c *cli.CLI) error { return c.WriteOut([]byte("hello")) },
			want:  syscall.ENOSPC,
		},
		{
			name:  "short write without error",
			w:     &failingWriter{budget: 10, shortWrites: true},
			write: func(c *cli.CLI) error { return c.WriteOut([]byte("hello")) },
			want:  io.ErrShortWrite,
		},
		{
			name:  "PrintOut propagates",
			w:     &failingWriter{failErr: syscall.EPIPE},
			write: func(c *cli.CLI) error { return c.PrintOut("report") },
			want:  syscall.EPIPE,
		},
		{
			name:  "PrintOutf propagates",
			w:     &failingWriter{failErr: syscall.EPIPE},
			write: func(c *cli.CLI) error { return c.PrintOutf("%d ranges", 3) },
			want:  syscall.EPIPE,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.write(&cli.CLI{Out: tt.w})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCLIOutput_WithinBudget(t *testing.T) {
	c := &cli.CLI{Out: &failingWriter{budget: 10}}
	assert.NoError(t, c.PrintOutf("%s", "hello"))
}

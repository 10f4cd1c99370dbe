package procfs

import (
	"encoding/binary"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/frobware/go-sharedpages"
)

// RecordSize is the size in bytes of one /proc/PID/pagemap record.
const RecordSize = 8

// PageOffsets returns the pagemap byte offsets of every virtual page
// that m spans, in ascending order. The first offset is
// (start/pageSize)*RecordSize and the last is
// (end/pageSize)*RecordSize - RecordSize. The sequence can be ranged
// over more than once. A zero pageSize yields nothing.
func PageOffsets(m sharedpages.Mapping, pageSize uint64) iter.Seq[int64] {
	if pageSize == 0 {
		return func(func(int64) bool) {}
	}
	first := m.Range.Start / pageSize
	last := m.Range.End / pageSize
	return func(yield func(int64) bool) {
		for page := first; page < last; page++ {
			if !yield(int64(page * RecordSize)) {
				return
			}
		}
	}
}

// PageCount returns the number of offsets PageOffsets yields for m.
func PageCount(m sharedpages.Mapping, pageSize uint64) int {
	if pageSize == 0 {
		return 0
	}
	first := m.Range.Start / pageSize
	last := m.Range.End / pageSize
	if last <= first {
		return 0
	}
	return int(last - first)
}

// PagemapReader decodes pagemap records from a seekable stream. It is
// not safe for concurrent use.
type PagemapReader struct {
	rs    io.ReadSeeker
	name  string
	order binary.ByteOrder
	buf   [RecordSize]byte
}

// NewPagemapReader returns a reader decoding records from rs using
// order. name identifies the stream in error messages.
func NewPagemapReader(rs io.ReadSeeker, name string, order binary.ByteOrder) *PagemapReader {
	return &PagemapReader{rs: rs, name: name, order: order}
}

// Status seeks to offset and decodes the record stored there.
func (r *PagemapReader) Status(offset int64) (sharedpages.PageStatus, error) {
	if _, err := r.rs.Seek(offset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek to offset %d in %s: %w", offset, r.name, err)
	}
	if _, err := io.ReadFull(r.rs, r.buf[:]); err != nil {
		return 0, fmt.Errorf("read record at offset %d in %s: %w", offset, r.name, err)
	}
	return sharedpages.PageStatus(r.order.Uint64(r.buf[:])), nil
}

// Statuses decodes one record per offset, in the order the offsets are
// produced. The first failing offset aborts the read; no page is
// skipped silently.
func (r *PagemapReader) Statuses(offsets iter.Seq[int64]) ([]sharedpages.PageStatus, error) {
	var statuses []sharedpages.PageStatus
	for offset := range offsets {
		status, err := r.Status(offset)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Pagemap is an open /proc/PID/pagemap file.
type Pagemap struct {
	*PagemapReader
	f *os.File
}

// Close closes the underlying file.
func (p *Pagemap) Close() error {
	return p.f.Close()
}

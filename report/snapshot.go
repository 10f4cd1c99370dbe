// Package report holds the result of a scan in the form handed to
// consumers: the compressed frame ranges plus enough context (host,
// page size, processes, failures) to interpret them later.
package report

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/frobware/go-sharedpages"
	"github.com/frobware/go-sharedpages/frameindex"
)

// Failure records a process that could not be scanned.
type Failure struct {
	PID     sharedpages.PID       `json:"pid"`
	Kind    sharedpages.ErrorKind `json:"kind"`
	Message string                `json:"message"`
}

// FailureFrom converts a scan error into a Failure.
func FailureFrom(err sharedpages.ErrProcessScan) Failure {
	return Failure{PID: err.PID, Kind: err.Kind, Message: err.Err.Error()}
}

// Snapshot is a point-in-time view of which processes share which
// physical frames.
type Snapshot struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Host      HostInfo  `json:"host"`
	PageSize  uint64    `json:"page_size"`
	ByteOrder string    `json:"byte_order"`
	// SharedOnly is set when Ranges was filtered to frames with more
	// than one owner.
	SharedOnly bool `json:"shared_only"`

	ResidentPages  uint64 `json:"resident_pages"`
	ZeroFramePages uint64 `json:"zero_frame_pages"`

	Processes []sharedpages.Process  `json:"processes"`
	Failures  []Failure              `json:"failures,omitempty"`
	Ranges    []frameindex.PageRange `json:"ranges"`

	// Digest is the BLAKE3 hash of Ranges; see Digest.
	Digest string `json:"digest"`
}

// Seal computes and stores the digest of s.Ranges.
func (s *Snapshot) Seal() {
	s.Digest = Digest(s.Ranges)
}

// Verify checks that Digest matches Ranges.
func (s *Snapshot) Verify() error {
	if got := Digest(s.Ranges); got != s.Digest {
		return fmt.Errorf("snapshot %s: digest mismatch: recorded %s, computed %s", s.ID, s.Digest, got)
	}
	return nil
}

// Process returns the process with the given pid, if it was scanned.
func (s *Snapshot) Process(pid sharedpages.PID) (sharedpages.Process, bool) {
	for _, p := range s.Processes {
		if p.PID == pid {
			return p, true
		}
	}
	return sharedpages.Process{}, false
}

// Pages returns the number of frames covered by all ranges and by the
// ranges with more than one owner.
func (s *Snapshot) Pages() (total, shared uint64) {
	for _, r := range s.Ranges {
		total += r.Pages()
		if r.Owners.Shared() {
			shared += r.Pages()
		}
	}
	return total, shared
}

// Digest hashes a range sequence. Two scans that observed identical
// frame ownership produce the same digest, which makes reports cheap
// to compare.
func Digest(ranges []frameindex.PageRange) string {
	h := blake3.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	put(uint64(len(ranges)))
	for _, r := range ranges {
		put(r.From)
		put(r.To)
		put(uint64(len(r.Owners)))
		for _, pid := range r.Owners {
			put(uint64(pid))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Summary is the listing view of a saved snapshot.
type Summary struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Hostname    string    `json:"hostname"`
	Processes   int       `json:"processes"`
	Failures    int       `json:"failures"`
	Ranges      int       `json:"ranges"`
	TotalPages  uint64    `json:"total_pages"`
	SharedPages uint64    `json:"shared_pages"`
	Digest      string    `json:"digest"`
}

// Summary returns the listing view of s.
func (s *Snapshot) Summary() Summary {
	total, shared := s.Pages()
	return Summary{
		ID:          s.ID,
		CreatedAt:   s.CreatedAt,
		Hostname:    s.Host.Hostname,
		Processes:   len(s.Processes),
		Failures:    len(s.Failures),
		Ranges:      len(s.Ranges),
		TotalPages:  total,
		SharedPages: shared,
		Digest:      s.Digest,
	}
}

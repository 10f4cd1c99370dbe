package procfs

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/frobware/go-sharedpages"
)

// mapsLine matches one line of /proc/PID/maps:
//
//	<start>-<end> <perms> <offset> <major>:<minor> <inode> [<path>]
//
// The path is everything after the inode, and may contain spaces.
var mapsLine = regexp.MustCompile(`^([0-9a-fA-F]+)-([0-9a-fA-F]+)\s+(\S{4})\s+([0-9a-fA-F]+)\s+([0-9a-fA-F]+:[0-9a-fA-F]+)\s+([0-9]+)(?:\s+(.*))?$`)

// ParseMapping parses one line of /proc/PID/maps. Any line that does
// not match the format yields sharedpages.ErrMalformedMapping carrying
// the line verbatim.
func ParseMapping(line string) (sharedpages.Mapping, error) {
	m := mapsLine.FindStringSubmatch(line)
	if m == nil {
		return sharedpages.Mapping{}, sharedpages.ErrMalformedMapping{Line: line}
	}

	malformed := func(field string, err error) error {
		return sharedpages.ErrMalformedMapping{Line: line, Reason: fmt.Sprintf("%s: %v", field, err)}
	}

	start, err := strconv.ParseUint(m[1], 16, 64)
	if err != nil {
		return sharedpages.Mapping{}, malformed("start address", err)
	}
	end, err := strconv.ParseUint(m[2], 16, 64)
	if err != nil {
		return sharedpages.Mapping{}, malformed("end address", err)
	}
	if start >= end {
		return sharedpages.Mapping{}, sharedpages.ErrMalformedMapping{
			Line:   line,
			Reason: fmt.Sprintf("start %#x is not below end %#x", start, end),
		}
	}
	offset, err := strconv.ParseUint(m[4], 16, 64)
	if err != nil {
		return sharedpages.Mapping{}, malformed("offset", err)
	}
	inode, err := strconv.ParseUint(m[6], 10, 64)
	if err != nil {
		return sharedpages.Mapping{}, malformed("inode", err)
	}

	return sharedpages.Mapping{
		Range:       sharedpages.AddressRange{Start: start, End: end},
		Permissions: m[3],
		Offset:      offset,
		Device:      m[5],
		Inode:       inode,
		Path:        strings.TrimSpace(m[7]),
	}, nil
}

// ReadMappings parses every line of a maps listing, in order. The
// first malformed line aborts the read.
func ReadMappings(r io.Reader) ([]sharedpages.Mapping, error) {
	var mappings []sharedpages.Mapping

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m, err := ParseMapping(scanner.Text())
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read maps: %w", err)
	}

	return mappings, nil
}

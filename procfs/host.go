package procfs

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/tklauser/go-sysconf"
)

// PageSize returns the host's page size as reported by sysconf(3).
func PageSize() (uint64, error) {
	v, err := sysconf.Sysconf(sysconf.SC_PAGESIZE)
	if err != nil {
		return 0, fmt.Errorf("sysconf PAGESIZE: %w", err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("sysconf PAGESIZE returned %d", v)
	}
	return uint64(v), nil
}

// Byte order names accepted by ResolveByteOrder.
const (
	ByteOrderNative = "native"
	ByteOrderLittle = "little"
	ByteOrderBig    = "big"
)

// ResolveByteOrder maps a configured byte order name to the order used
// to decode pagemap records. The kernel writes records in the host's
// native order, so "native" is correct whenever the pagemap being read
// was produced by the running kernel; "little" and "big" exist for
// decoding captures taken on another architecture.
func ResolveByteOrder(name string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ByteOrderNative, "":
		return nativeOrder(), nil
	case ByteOrderLittle, "le":
		return binary.LittleEndian, nil
	case ByteOrderBig, "be":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("unknown byte order: %q", name)
	}
}

// ByteOrderName returns the ResolveByteOrder name of order.
func ByteOrderName(order binary.ByteOrder) string {
	if order.Uint16([]byte{1, 0}) == 1 {
		return ByteOrderLittle
	}
	return ByteOrderBig
}

// nativeOrder returns LittleEndian or BigEndian, whichever matches the
// running host.
func nativeOrder() binary.ByteOrder {
	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 1)
	if probe[0] == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

//go:build !cgo_sqlite

package sqlite

import (
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// pragmaParam renders one pragma as a modernc.org/sqlite DSN query
// parameter: _pragma=key(value).
func pragmaParam(key, value string) string {
	return "_pragma=" + key + "(" + value + ")"
}

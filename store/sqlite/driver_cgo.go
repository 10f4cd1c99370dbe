//go:build cgo_sqlite

package sqlite

import (
	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

// pragmaParam renders one pragma as a mattn/go-sqlite3 DSN query
// parameter: _key=value.
func pragmaParam(key, value string) string {
	return "_" + key + "=" + value
}

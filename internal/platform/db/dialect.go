package db

import (
	"fmt"
	"strconv"
)

// Dialect selects placeholder and row-limit syntax.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectOracle   Dialect = "oracle"
)

func (d Dialect) valid() bool {
	return d == DialectPostgres || d == DialectOracle
}

// Placeholder returns the bind marker for the n-th (1-based) parameter.
func (d Dialect) Placeholder(n int) string {
	if d == DialectOracle {
		return ":" + strconv.Itoa(n)
	}
	return "$" + strconv.Itoa(n)
}

// Limit returns a row-limit clause whose bound is the n-th parameter. It must
// follow the ORDER BY clause.
func (d Dialect) Limit(n int) string {
	if d == DialectOracle {
		return fmt.Sprintf("FETCH FIRST %s ROWS ONLY", d.Placeholder(n))
	}
	return "LIMIT " + d.Placeholder(n)
}

// DialectForDriver infers the dialect of a registered driver name.
func DialectForDriver(driver string) (Dialect, bool) {
	switch driver {
	case DriverPgx, DriverPQ:
		return DialectPostgres, true
	case DriverOracle:
		return DialectOracle, true
	}
	return "", false
}

package db

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	goora "github.com/sijms/go-ora/v2"
)

// Driver names registered with database/sql by the imports above.
const (
	DriverPgx    = "pgx"
	DriverPQ     = "postgres"
	DriverOracle = "oracle"
)

const (
	defaultPostgresPort = 5432
	defaultOraclePort   = 1521
)

// BuildDSN renders credentials into the connection string the driver expects.
// Drivers without a known format receive the locator verbatim.
func BuildDSN(driver string, c Credentials) (string, error) {
	switch driver {
	case DriverPgx, DriverPQ:
		return postgresDSN(c)
	case DriverOracle:
		host, port, service, err := ParseLocator(c.Locator, defaultOraclePort)
		if err != nil {
			return "", err
		}
		return goora.BuildUrl(host, port, service, c.Username, c.Password, nil), nil
	}
	return c.Locator, nil
}

func postgresDSN(c Credentials) (string, error) {
	if strings.Contains(c.Locator, "://") {
		u, err := url.Parse(c.Locator)
		if err != nil {
			return "", fmt.Errorf("%w: invalid locator: %w", ErrConnection, err)
		}
		if c.Username != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		}
		return u.String(), nil
	}

	host, port, service, err := ParseLocator(c.Locator, defaultPostgresPort)
	if err != nil {
		return "", err
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   host + ":" + strconv.Itoa(port),
		Path:   "/" + service,
	}
	return u.String(), nil
}

// ParseLocator splits a host[:port]/service locator.
func ParseLocator(locator string, defaultPort int) (host string, port int, service string, err error) {
	hostPort, service, ok := strings.Cut(locator, "/")
	if !ok || hostPort == "" || service == "" {
		return "", 0, "", fmt.Errorf("%w: locator %q must be host[:port]/service", ErrConnection, locator)
	}

	host, portStr, hasPort := strings.Cut(hostPort, ":")
	if host == "" {
		return "", 0, "", fmt.Errorf("%w: locator %q has no host", ErrConnection, locator)
	}
	port = defaultPort
	if hasPort {
		port, err = strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return "", 0, "", fmt.Errorf("%w: locator %q has invalid port", ErrConnection, locator)
		}
	}
	return host, port, service, nil
}

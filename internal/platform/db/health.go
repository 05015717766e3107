package db

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Connector opens independent connections with fixed credentials, one per
// concurrent unit of work.
type Connector struct {
	creds  Credentials
	logger zerolog.Logger
}

func NewConnector(creds Credentials, logger zerolog.Logger) *Connector {
	return &Connector{creds: creds, logger: logger}
}

func (c *Connector) Open(ctx context.Context) (*Handle, error) {
	return Open(ctx, c.creds, c.logger)
}

// Dialect resolves the dialect the opened connections will use.
func (c *Connector) Dialect() (Dialect, error) {
	driver := c.creds.Driver
	if driver == "" {
		driver = DriverOracle
	}
	return c.creds.resolveDialect(driver)
}

// HealthStatus is the body returned by the health endpoint.
type HealthStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency"`
	Error   string `json:"error,omitempty"`
}

// HealthHandler returns a handler that opens a fresh connection and pings it.
func HealthHandler(c *Connector) echo.HandlerFunc {
	return func(ec echo.Context) error {
		ctx, cancel := context.WithTimeout(ec.Request().Context(), 5*time.Second)
		defer cancel()

		start := time.Now()
		err := c.ping(ctx)
		status := HealthStatus{Status: "healthy", Latency: time.Since(start).String()}

		if err != nil {
			status.Status = "unhealthy"
			status.Error = err.Error()
			return ec.JSON(http.StatusServiceUnavailable, status)
		}
		return ec.JSON(http.StatusOK, status)
	}
}

func (c *Connector) ping(ctx context.Context) error {
	h, err := c.Open(ctx)
	if err != nil {
		return err
	}
	defer h.Close()
	return h.PingContext(ctx)
}

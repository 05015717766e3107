package middleware

import (
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/patientdata/internal/platform/auth"
)

// AuditEntry records one read of patient data.
type AuditEntry struct {
	RequestID string
	UserID    string
	PatientID string
	// Section is the part of the record that was read, or "search".
	Section string
	// Criteria names the search parameters used. Their values are patient
	// data and stay out of the log.
	Criteria string
	RemoteIP string
	Status   int
}

// Audit logs an access entry for every request under /api/v1/patients,
// after the handler has run so the outcome is known.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !strings.HasPrefix(c.Path(), "/api/v1/patients") {
				return next(c)
			}

			err := next(c)

			entry := buildAuditEntry(c)
			if err != nil {
				entry.Status = statusOf(err)
			}

			logger.Info().
				Str("type", "patient_access").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("patient_id", entry.PatientID).
				Str("section", entry.Section).
				Str("criteria", entry.Criteria).
				Str("remote_ip", entry.RemoteIP).
				Int("status", entry.Status).
				Msg("patient data accessed")

			return err
		}
	}
}

func buildAuditEntry(c echo.Context) AuditEntry {
	entry := AuditEntry{
		RequestID: GetRequestID(c),
		UserID:    auth.UserIDFromContext(c.Request().Context()),
		PatientID: c.Param("id"),
		RemoteIP:  c.RealIP(),
		Status:    c.Response().Status,
	}

	switch {
	case entry.PatientID == "":
		entry.Section = "search"
		entry.Criteria = queryParamNames(c)
	case strings.Count(c.Path(), "/") > 4:
		entry.Section = c.Path()[strings.LastIndex(c.Path(), "/")+1:]
	default:
		entry.Section = "all"
	}
	return entry
}

func queryParamNames(c echo.Context) string {
	names := make([]string, 0, len(c.QueryParams()))
	for name := range c.QueryParams() {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

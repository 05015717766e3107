package pagination

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

var ErrInvalidLimit = errors.New("invalid limit")

// Limit extracts the row limit from the "limit" query parameter, falling back
// to "_count". An absent parameter yields def; a value outside 1..max is an
// error rather than being clamped.
func Limit(c echo.Context, def, max int) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		raw = c.QueryParam("_count")
	}
	if raw == "" {
		return def, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidLimit, raw)
	}
	if limit <= 0 || limit > max {
		return 0, fmt.Errorf("%w: must be between 1 and %d, got %d", ErrInvalidLimit, max, limit)
	}
	return limit, nil
}

// Response wraps a limited result list.
type Response struct {
	Data    interface{} `json:"data"`
	Count   int         `json:"count"`
	Limit   int         `json:"limit"`
	HasMore bool        `json:"has_more"`
}

// NewResponse reports HasMore when the result filled the limit, since the
// query may have been truncated.
func NewResponse(data interface{}, count, limit int) *Response {
	return &Response{
		Data:    data,
		Count:   count,
		Limit:   limit,
		HasMore: count >= limit,
	}
}

package patient

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/patientdata/internal/platform/db"
	"github.com/ehr/patientdata/pkg/pagination"
)

// Conn is a connection the handler owns for the duration of one request.
type Conn interface {
	Querier
	Close() error
}

// Opener opens a fresh connection. *db.Connector satisfies it through a
// small adapter in the server wiring.
type Opener func(ctx context.Context) (Conn, error)

type Handler struct {
	open    Opener
	dialect db.Dialect
	logger  zerolog.Logger
}

func NewHandler(open Opener, dialect db.Dialect, logger zerolog.Logger) *Handler {
	return &Handler{open: open, dialect: dialect, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:id", h.GetPatient)
	api.GET("/patients/:id/basic", h.GetBasicInfo)
	api.GET("/patients/:id/addresses", h.GetAddresses)
	api.GET("/patients/:id/insurance", h.GetInsurance)
	api.GET("/patients/:id/diseases", h.GetDiseases)
}

func (h *Handler) GetPatient(c echo.Context) error {
	return h.withFetcher(c, func(ctx context.Context, f *Fetcher) error {
		rec, err := f.GetAllData(ctx, c.Param("id"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, rec)
	})
}

func (h *Handler) GetBasicInfo(c echo.Context) error {
	return h.withFetcher(c, func(ctx context.Context, f *Fetcher) error {
		info, err := f.GetBasicInfo(ctx, c.Param("id"))
		if err != nil {
			return err
		}
		if info == nil {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return c.JSON(http.StatusOK, info)
	})
}

func (h *Handler) GetAddresses(c echo.Context) error {
	return h.withFetcher(c, func(ctx context.Context, f *Fetcher) error {
		list, err := f.GetAddresses(ctx, c.Param("id"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, list)
	})
}

func (h *Handler) GetInsurance(c echo.Context) error {
	return h.withFetcher(c, func(ctx context.Context, f *Fetcher) error {
		list, err := f.GetInsurance(ctx, c.Param("id"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, list)
	})
}

func (h *Handler) GetDiseases(c echo.Context) error {
	return h.withFetcher(c, func(ctx context.Context, f *Fetcher) error {
		list, err := f.GetDiseases(ctx, c.Param("id"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, list)
	})
}

// ListPatients searches by kana name (?name=) or by registration date range
// (?registered_from=&registered_to=).
func (h *Handler) ListPatients(c echo.Context) error {
	name := c.QueryParam("name")
	from, to := c.QueryParam("registered_from"), c.QueryParam("registered_to")

	switch {
	case name != "":
		limit, err := pagination.Limit(c, DefaultSearchLimit, MaxSearchLimit)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return h.withFetcher(c, func(ctx context.Context, f *Fetcher) error {
			list, err := f.SearchByName(ctx, name, limit)
			if err != nil {
				return err
			}
			return c.JSON(http.StatusOK, pagination.NewResponse(list, len(list), limit))
		})
	case from != "" || to != "":
		if from == "" || to == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "registered_from and registered_to are both required")
		}
		return h.withFetcher(c, func(ctx context.Context, f *Fetcher) error {
			list, err := f.GetByDateRange(ctx, from, to)
			if err != nil {
				return err
			}
			return c.JSON(http.StatusOK, list)
		})
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "name or registered_from/registered_to is required")
	}
}

// withFetcher opens a connection for this request only and closes it before
// the response is complete.
func (h *Handler) withFetcher(c echo.Context, fn func(context.Context, *Fetcher) error) error {
	ctx := c.Request().Context()
	conn, err := h.open(ctx)
	if err != nil {
		return httpError(err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			h.logger.Warn().Err(cerr).Msg("close request connection")
		}
	}()

	if err := fn(ctx, NewFetcher(conn, h.dialect, h.logger)); err != nil {
		return httpError(err)
	}
	return nil
}

func httpError(err error) error {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, db.ErrConnection):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrData):
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

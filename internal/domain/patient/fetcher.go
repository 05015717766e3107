package patient

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/ehr/patientdata/internal/platform/db"
)

var (
	// ErrQuery covers invalid caller input and failures reported by the driver.
	ErrQuery = errors.New("query error")
	// ErrInvalidInput marks the ErrQuery cases caused by the caller's
	// arguments rather than the database.
	ErrInvalidInput = errors.New("invalid input")
	// ErrData is returned when a result set does not have the expected shape.
	ErrData = errors.New("unexpected result shape")
)

const (
	DefaultSearchLimit = 100
	MaxSearchLimit     = 1000

	dateLayout = "2006-01-02"
)

// Querier is satisfied by *db.Handle, *sql.Conn and *sql.DB.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Fetcher runs the patient lookups on one bound connection. Like the
// connection itself it must not be shared between goroutines.
type Fetcher struct {
	q       Querier
	queries queries
	logger  zerolog.Logger
}

func NewFetcher(q Querier, dialect db.Dialect, logger zerolog.Logger) *Fetcher {
	return &Fetcher{q: q, queries: newQueries(dialect), logger: logger}
}

// GetBasicInfo returns nil without error when the patient does not exist.
func (f *Fetcher) GetBasicInfo(ctx context.Context, patientID string) (*BasicInfo, error) {
	list, err := queryList(ctx, f, "basic info", f.queries.basicInfo, basicInfoColCount, scanBasicInfo, patientID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (f *Fetcher) GetAddresses(ctx context.Context, patientID string) ([]*Address, error) {
	return queryList(ctx, f, "addresses", f.queries.addresses, addressColCount, scanAddress, patientID)
}

func (f *Fetcher) GetInsurance(ctx context.Context, patientID string) ([]*Insurance, error) {
	return queryList(ctx, f, "insurance", f.queries.insurance, insuranceColCount, scanInsurance, patientID)
}

// GetDiseases returns diagnoses, most recent treatment start first.
func (f *Fetcher) GetDiseases(ctx context.Context, patientID string) ([]*Disease, error) {
	return queryList(ctx, f, "diseases", f.queries.diseases, diseaseColCount, scanDisease, patientID)
}

// GetAllData assembles the four lookups. They run as independent statements;
// no snapshot is shared between them.
func (f *Fetcher) GetAllData(ctx context.Context, patientID string) (*Record, error) {
	f.logger.Info().Str("patient_id", patientID).Msg("fetching patient data")

	basic, err := f.GetBasicInfo(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("patient %s: %w", patientID, err)
	}
	addresses, err := f.GetAddresses(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("patient %s: %w", patientID, err)
	}
	insurance, err := f.GetInsurance(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("patient %s: %w", patientID, err)
	}
	diseases, err := f.GetDiseases(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("patient %s: %w", patientID, err)
	}

	return &Record{
		BasicInfo: basic,
		Addresses: addresses,
		Insurance: insurance,
		Diseases:  diseases,
	}, nil
}

// GetBatch fetches the full record of every id, keyed by id in the order
// given. A repeated id is fetched once.
func (f *Fetcher) GetBatch(ctx context.Context, patientIDs []string) (*Batch, error) {
	batch := NewBatch()
	for _, id := range patientIDs {
		if batch.Get(id) != nil {
			continue
		}
		rec, err := f.GetAllData(ctx, id)
		if err != nil {
			return nil, err
		}
		batch.Add(id, rec)
	}
	return batch, nil
}

// SearchByName matches pattern as a case-sensitive substring of the kana
// full name. Wildcard characters in pattern match literally.
func (f *Fetcher) SearchByName(ctx context.Context, pattern string, limit int) ([]*BasicInfo, error) {
	if limit <= 0 || limit > MaxSearchLimit {
		return nil, fmt.Errorf("%w: %w: search limit must be between 1 and %d, got %d", ErrQuery, ErrInvalidInput, MaxSearchLimit, limit)
	}
	like := "%" + escapeLike(pattern) + "%"
	list, err := queryList(ctx, f, "search by name", f.queries.searchName, basicInfoColCount, scanBasicInfo, like, limit)
	if err != nil {
		return nil, err
	}
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// GetByDateRange returns patients registered between start and end
// (YYYY-MM-DD, both days inclusive), newest first.
func (f *Fetcher) GetByDateRange(ctx context.Context, startDate, endDate string) ([]*BasicInfo, error) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: invalid start date %q, expected YYYY-MM-DD", ErrQuery, ErrInvalidInput, startDate)
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: invalid end date %q, expected YYYY-MM-DD", ErrQuery, ErrInvalidInput, endDate)
	}
	if start.After(end) {
		return nil, fmt.Errorf("%w: %w: start date %s is after end date %s", ErrQuery, ErrInvalidInput, startDate, endDate)
	}

	dayAfterEnd := end.AddDate(0, 0, 1).Format(dateLayout)
	return queryList(ctx, f, "date range", f.queries.dateRange, basicInfoColCount, scanBasicInfo,
		start.Format(dateLayout), dayAfterEnd)
}

func queryList[T any](ctx context.Context, f *Fetcher, op, query string, cols int, scan func(*sql.Rows) (*T, error), args ...any) ([]*T, error) {
	f.logger.Debug().Str("op", op).Msg("executing query")

	rows, err := f.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, f.classify(op, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, f.classify(op, err)
	}
	if len(columns) != cols {
		return nil, fmt.Errorf("%w: %s: expected %d columns, got %d", ErrData, op, cols, len(columns))
	}

	list := make([]*T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrData, op, err)
		}
		list = append(list, v)
	}
	if err := rows.Err(); err != nil {
		return nil, f.classify(op, err)
	}
	return list, nil
}

// classify wraps a driver error with the connection or query sentinel,
// keeping the original diagnostic.
func (f *Fetcher) classify(op string, err error) error {
	f.logger.Error().Err(err).Str("op", op).Msg("query failed")

	if errors.Is(err, db.ErrConnection) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var connectErr *pgconn.ConnectError
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) || errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %s: %w", db.ErrConnection, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrQuery, op, err)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

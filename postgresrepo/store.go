package postgresrepo

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/openlibro/library-lending-go/lending"
	"github.com/openlibro/library-lending-go/postgresrepo/internal/adapters"
)

const (
	defaultCategoriesTableName = "categories"
	defaultBooksTableName      = "books"
	defaultReadersTableName    = "readers"
	defaultLoansTableName      = "loans"

	logMsgBuildQueryFailed    = "failed to build query"
	logMsgDBQueryFailed       = "database query execution failed"
	logMsgDBExecFailed        = "database execution failed"
	logMsgCloseRowsFailed     = "failed to close database rows"
	logMsgScanRowFailed       = "failed to scan database row"
	logMsgRowsAffectedFailed  = "failed to get rows affected count"
	logMsgLoanAdded           = "loan added"
	logMsgLoanUpdated         = "loan updated"
	logMsgConcurrencyConflict = "concurrency conflict detected"
	logMsgSQLExecuted         = "executed sql for: "
	logAttrError              = "error"
	logAttrQuery              = "query"
	logAttrDurationMS         = "duration_ms"
	logAttrLoanID             = "loan_id"
	logAttrBookID             = "book_id"
	logActionQuery            = "query"
	logActionExec             = "exec"

	colID                = "id"
	colName              = "name"
	colParentID          = "parent_id"
	colISBN              = "isbn"
	colTitle             = "title"
	colAuthor            = "author"
	colTotalCopies       = "total_copies"
	colReadingRoomCopies = "reading_room_copies"
	colCategoryIDs       = "category_ids"
	colIsStaff           = "is_staff"
	colReaderID          = "reader_id"
	colStaffID           = "staff_id"
	colBookID            = "book_id"
	colBorrowedAt        = "borrowed_at"
	colDueAt             = "due_at"
	colReturnedAt        = "returned_at"
	colIsActive          = "is_active"
	colInitialDays       = "initial_days"
	colExtensionDays     = "extension_days"
	colLastExtendedAt    = "last_extended_at"

	cteOpenLoans    = "open_loans"
	cteStock        = "stock"
	aliasOpenCount  = "open_count"
	aliasLoanable   = "loanable"
	dialectPostgres = "postgres"
)

var (
	// ErrNilDatabaseConnection is returned when a factory receives a nil connection.
	ErrNilDatabaseConnection = errors.New("nil database connection supplied")

	// ErrEmptyTableName is returned when a table name option is empty.
	ErrEmptyTableName = errors.New("empty table name supplied")

	// ErrBuildingQueryFailed wraps a goqu SQL generation failure.
	ErrBuildingQueryFailed = errors.New("building the sql query failed")

	// ErrQueryingFailed wraps a database read failure.
	ErrQueryingFailed = errors.New("querying the database failed")

	// ErrExecutingFailed wraps a database write failure.
	ErrExecutingFailed = errors.New("executing the database statement failed")

	// ErrScanningRowFailed wraps a row scan failure.
	ErrScanningRowFailed = errors.New("scanning the database row failed")

	// ErrGettingRowsAffectedFailed wraps a rows-affected retrieval failure.
	ErrGettingRowsAffectedFailed = errors.New("getting the rows affected count failed")
)

// Logger interface for SQL query logging, operational messages, warnings, and
// error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// TableNames holds the table names the repositories read from and write to.
type TableNames struct {
	Categories string
	Books      string
	Readers    string
	Loans      string
}

// DefaultTableNames returns the stock table names.
func DefaultTableNames() TableNames {
	return TableNames{
		Categories: defaultCategoriesTableName,
		Books:      defaultBooksTableName,
		Readers:    defaultReadersTableName,
		Loans:      defaultLoansTableName,
	}
}

// Store implements the lending repository interfaces on top of PostgreSQL.
// It leverages a database adapter and supports customizable logging and table
// configuration. Loan writes are guarded: an insert that would overdraw the
// book's loanable stock, or an update against a loan that was concurrently
// closed, affects zero rows and is reported as a concurrency conflict.
type Store struct {
	db     adapters.DBAdapter
	tables TableNames
	logger Logger
}

// Interface guards.
var (
	_ lending.CategoryRepository = Store{}
	_ lending.BookRepository     = Store{}
	_ lending.ReaderRepository   = Store{}
	_ lending.LoanRepository     = Store{}
)

// Option defines a functional option for configuring a Store.
type Option func(*Store) error

// WithTableNames sets the table names for the Store.
func WithTableNames(tables TableNames) Option {
	return func(s *Store) error {
		if tables.Categories == "" || tables.Books == "" || tables.Readers == "" || tables.Loans == "" {
			return ErrEmptyTableName
		}

		s.tables = tables

		return nil
	}
}

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: Loan writes and concurrency conflicts (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// NewStoreFromPGXPool creates a new Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromPGXPoolWithReplica creates a new Store that sends reads to the
// replica pool and writes to the primary pool.
func NewStoreFromPGXPoolWithReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil || replica == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (Store, error) {
	store := Store{
		db:     db,
		tables: DefaultTableNames(),
	}

	for _, option := range options {
		if err := option(&store); err != nil {
			return Store{}, err
		}
	}

	return store, nil
}

// executeQuery executes the SQL query and returns rows with timing information.
func (s Store) executeQuery(ctx context.Context, sqlQuery string) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := s.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	s.logQueryWithDuration(sqlQuery, logActionQuery, duration)

	if queryErr != nil {
		if s.logger != nil {
			s.logger.Error(logMsgDBQueryFailed, logAttrError, queryErr.Error(), logAttrQuery, sqlQuery)
		}

		return nil, errors.Join(ErrQueryingFailed, queryErr)
	}

	return rows, nil
}

// executeExec executes the SQL statement and returns the rows affected count
// with timing information.
func (s Store) executeExec(ctx context.Context, sqlQuery string) (int64, error) {
	start := time.Now()
	result, execErr := s.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	s.logQueryWithDuration(sqlQuery, logActionExec, duration)

	if execErr != nil {
		if s.logger != nil {
			s.logger.Error(logMsgDBExecFailed, logAttrError, execErr.Error(), logAttrQuery, sqlQuery)
		}

		return 0, errors.Join(ErrExecutingFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		if s.logger != nil {
			s.logger.Error(logMsgRowsAffectedFailed, logAttrError, rowsAffectedErr.Error())
		}

		return 0, errors.Join(ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, nil
}

// closeRows safely closes database rows and logs any errors.
func (s Store) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if s.logger != nil {
			s.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

func (s Store) logBuildQueryError(buildErr error) error {
	if s.logger != nil {
		s.logger.Error(logMsgBuildQueryFailed, logAttrError, buildErr.Error())
	}

	return errors.Join(ErrBuildingQueryFailed, buildErr)
}

func (s Store) logScanError(scanErr error) error {
	if s.logger != nil {
		s.logger.Error(logMsgScanRowFailed, logAttrError, scanErr.Error())
	}

	return errors.Join(ErrScanningRowFailed, scanErr)
}

// logQueryWithDuration logs SQL queries with execution time at debug level if
// the logger is configured.
func (s Store) logQueryWithDuration(sqlQuery string, action string, duration time.Duration) {
	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, durationToMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

func (s Store) builder() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

package postgresrepo

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/openlibro/library-lending-go/lending"
)

// GetReaderByID retrieves a single reader by their id.
func (s Store) GetReaderByID(ctx context.Context, id int) (lending.Reader, error) {
	selectStmt := s.builder().
		From(s.tables.Readers).
		Select(colID, colName, colIsStaff).
		Where(goqu.Ex{colID: id})

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return lending.Reader{}, s.logBuildQueryError(toSQLErr)
	}

	rows, queryErr := s.executeQuery(ctx, sqlQuery)
	if queryErr != nil {
		return lending.Reader{}, queryErr
	}
	defer s.closeRows(rows)

	if !rows.Next() {
		return lending.Reader{}, fmt.Errorf("%w: id %d", lending.ErrReaderNotFound, id)
	}

	var reader lending.Reader
	if scanErr := rows.Scan(&reader.ID, &reader.Name, &reader.IsStaff); scanErr != nil {
		return lending.Reader{}, s.logScanError(scanErr)
	}

	return reader, nil
}

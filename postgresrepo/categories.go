package postgresrepo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/openlibro/library-lending-go/lending"
)

type categoryRow struct {
	id       int
	name     string
	parentID sql.NullInt64
}

func (r categoryRow) toCategory() lending.Category {
	category := lending.Category{ID: r.id, Name: r.name}

	if r.parentID.Valid {
		parentID := int(r.parentID.Int64)
		category.ParentID = &parentID
	}

	return category
}

// GetCategoryByID retrieves a single category by its id.
func (s Store) GetCategoryByID(ctx context.Context, id int) (lending.Category, error) {
	selectStmt := s.builder().
		From(s.tables.Categories).
		Select(colID, colName, colParentID).
		Where(goqu.Ex{colID: id})

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return lending.Category{}, s.logBuildQueryError(toSQLErr)
	}

	rows, queryErr := s.executeQuery(ctx, sqlQuery)
	if queryErr != nil {
		return lending.Category{}, queryErr
	}
	defer s.closeRows(rows)

	if !rows.Next() {
		return lending.Category{}, fmt.Errorf("%w: id %d", lending.ErrCategoryNotFound, id)
	}

	var row categoryRow
	if scanErr := rows.Scan(&row.id, &row.name, &row.parentID); scanErr != nil {
		return lending.Category{}, s.logScanError(scanErr)
	}

	return row.toCategory(), nil
}

// GetCategoriesByParentID retrieves the direct children of a category.
func (s Store) GetCategoriesByParentID(ctx context.Context, parentID int) ([]lending.Category, error) {
	selectStmt := s.builder().
		From(s.tables.Categories).
		Select(colID, colName, colParentID).
		Where(goqu.Ex{colParentID: parentID}).
		Order(goqu.I(colID).Asc())

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return nil, s.logBuildQueryError(toSQLErr)
	}

	rows, queryErr := s.executeQuery(ctx, sqlQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	defer s.closeRows(rows)

	categories := make([]lending.Category, 0)

	for rows.Next() {
		var row categoryRow
		if scanErr := rows.Scan(&row.id, &row.name, &row.parentID); scanErr != nil {
			return nil, s.logScanError(scanErr)
		}

		categories = append(categories, row.toCategory())
	}

	return categories, nil
}

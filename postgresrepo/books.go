package postgresrepo

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	jsoniter "github.com/json-iterator/go"

	"github.com/openlibro/library-lending-go/lending"
)

type bookRow struct {
	id                int
	isbn              string
	title             string
	author            string
	totalCopies       int
	readingRoomCopies int
	categoryIDs       []byte
}

func (r bookRow) toBook() (lending.Book, error) {
	book := lending.Book{
		ID:                r.id,
		ISBN:              r.isbn,
		Title:             r.title,
		Author:            r.author,
		TotalCopies:       r.totalCopies,
		ReadingRoomCopies: r.readingRoomCopies,
	}

	if len(r.categoryIDs) > 0 {
		if err := jsoniter.ConfigFastest.Unmarshal(r.categoryIDs, &book.CategoryIDs); err != nil {
			return lending.Book{}, err
		}
	}

	return book, nil
}

// GetBookByID retrieves a single book by its id.
func (s Store) GetBookByID(ctx context.Context, id int) (lending.Book, error) {
	selectStmt := s.bookSelect().Where(goqu.Ex{colID: id})

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return lending.Book{}, s.logBuildQueryError(toSQLErr)
	}

	rows, queryErr := s.executeQuery(ctx, sqlQuery)
	if queryErr != nil {
		return lending.Book{}, queryErr
	}
	defer s.closeRows(rows)

	if !rows.Next() {
		return lending.Book{}, fmt.Errorf("%w: id %d", lending.ErrBookNotFound, id)
	}

	return s.scanBook(rows)
}

// GetBooksByCategoryID retrieves the books tagged with a category id.
// The tag list is stored as a JSONB array and matched with the containment
// operator.
func (s Store) GetBooksByCategoryID(ctx context.Context, categoryID int) ([]lending.Book, error) {
	selectStmt := s.bookSelect().
		Where(goqu.L(fmt.Sprintf(`%s @> '[%d]'`, colCategoryIDs, categoryID))).
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

	books := make([]lending.Book, 0)

	for rows.Next() {
		book, scanErr := s.scanBook(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		books = append(books, book)
	}

	return books, nil
}

func (s Store) bookSelect() *goqu.SelectDataset {
	return s.builder().
		From(s.tables.Books).
		Select(colID, colISBN, colTitle, colAuthor, colTotalCopies, colReadingRoomCopies, colCategoryIDs)
}

func (s Store) scanBook(rows interface{ Scan(dest ...any) error }) (lending.Book, error) {
	var row bookRow

	if scanErr := rows.Scan(
		&row.id, &row.isbn, &row.title, &row.author,
		&row.totalCopies, &row.readingRoomCopies, &row.categoryIDs,
	); scanErr != nil {
		return lending.Book{}, s.logScanError(scanErr)
	}

	book, buildErr := row.toBook()
	if buildErr != nil {
		return lending.Book{}, s.logScanError(buildErr)
	}

	return book, nil
}

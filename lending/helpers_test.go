package lending_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openlibro/library-lending-go/lending"
	"github.com/openlibro/library-lending-go/lendingtest"
)

// fixedNow is the reference moment every test clock reports.
var fixedNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, store *lendingtest.MemoryStore, policy lending.Policy) lending.Engine {
	t.Helper()

	engine, err := lending.NewEngine(
		store, store, store, store,
		policy,
		lending.WithEngineClock(lendingtest.FixedClock(fixedNow)),
	)
	require.NoError(t, err)

	return engine
}

func newTestService(t *testing.T, engine lending.Engine) lending.BorrowingService {
	t.Helper()

	service, err := lending.NewBorrowingService(
		engine,
		lending.WithServiceRetryOptions(lending.WithBaseDelay(time.Millisecond)),
	)
	require.NoError(t, err)

	return service
}

func givenReader(store *lendingtest.MemoryStore, id int, isStaff bool) lending.Reader {
	reader := lending.Reader{ID: id, Name: "Test Reader", IsStaff: isStaff}
	store.PutReader(reader)

	return reader
}

func givenBook(store *lendingtest.MemoryStore, id int, total int, readingRoom int, categoryIDs ...int) lending.Book {
	book := lending.Book{
		ID:                id,
		ISBN:              "978-1-098-10013-1",
		Title:             "Test Book Title",
		Author:            "Test Author",
		TotalCopies:       total,
		ReadingRoomCopies: readingRoom,
		CategoryIDs:       categoryIDs,
	}
	store.PutBook(book)

	return book
}

func givenRootCategory(store *lendingtest.MemoryStore, id int, name string) lending.Category {
	category := lending.Category{ID: id, Name: name}
	store.PutCategory(category)

	return category
}

func givenChildCategory(store *lendingtest.MemoryStore, id int, name string, parentID int) lending.Category {
	category := lending.Category{ID: id, Name: name, ParentID: lendingtest.IntPtr(parentID)}
	store.PutCategory(category)

	return category
}

// givenOpenLoan stores an open loan borrowed at the given time.
func givenOpenLoan(store *lendingtest.MemoryStore, readerID int, bookID int, borrowedAt time.Time) lending.Loan {
	return store.PutLoan(lending.Loan{
		ReaderID:    readerID,
		BookID:      bookID,
		BorrowedAt:  borrowedAt,
		DueAt:       borrowedAt.AddDate(0, 0, 28),
		IsActive:    true,
		InitialDays: 28,
	})
}

// givenClosedLoan stores a returned loan.
func givenClosedLoan(store *lendingtest.MemoryStore, readerID int, bookID int, borrowedAt time.Time, returnedAt time.Time) lending.Loan {
	return store.PutLoan(lending.Loan{
		ReaderID:    readerID,
		BookID:      bookID,
		BorrowedAt:  borrowedAt,
		DueAt:       borrowedAt.AddDate(0, 0, 28),
		ReturnedAt:  lendingtest.TimePtr(returnedAt),
		IsActive:    false,
		InitialDays: 28,
	})
}

func assertRuleViolation(t *testing.T, err error, expectedReason string) {
	t.Helper()

	require.Error(t, err)
	require.True(t, lending.IsRuleViolation(err), "expected a rule violation, got: %v", err)
	require.ErrorContains(t, err, expectedReason)
}

package lending_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openlibro/library-lending-go/lending"
	"github.com/openlibro/library-lending-go/lendingtest"
)

func Test_AvailableCopies_SubtractsReadingRoomAndOpenLoans(t *testing.T) {
	// arrange
	book := lending.Book{ID: 1, TotalCopies: 10, ReadingRoomCopies: 2}
	borrowedAt := fixedNow.AddDate(0, 0, -7)

	loans := []lending.Loan{
		{ID: 1, BookID: 1, BorrowedAt: borrowedAt, IsActive: true},                                            // open
		{ID: 2, BookID: 1, BorrowedAt: borrowedAt, IsActive: false},                                           // open despite inactive flag
		{ID: 3, BookID: 1, BorrowedAt: borrowedAt, ReturnedAt: lendingtest.TimePtr(fixedNow)},                 // closed
		{ID: 4, BookID: 1, BorrowedAt: borrowedAt, IsActive: true, ReturnedAt: lendingtest.TimePtr(fixedNow)}, // closed despite active flag
	}

	// act + assert
	assert.Equal(t, 2, lending.OpenLoanCount(loans))
	assert.Equal(t, 8, lending.LoanableStock(book))
	assert.Equal(t, 6, lending.AvailableCopies(book, loans))
}

func Test_CanBeLoanable_False_WhenAllCopiesAreReadingRoomOnly(t *testing.T) {
	// arrange
	book := lending.Book{ID: 1, TotalCopies: 5, ReadingRoomCopies: 5}

	// act + assert - no loans at all, still not loanable
	assert.False(t, lending.CanBeLoanable(book, nil, 0.1))
}

func Test_CanBeLoanable_TracksTheReservedFraction(t *testing.T) {
	// arrange - 10 loanable copies, reserve fraction 0.1
	book := lending.Book{ID: 1, TotalCopies: 10, ReadingRoomCopies: 0}
	borrowedAt := fixedNow.AddDate(0, 0, -1)

	loans := make([]lending.Loan, 0, 10)
	for i := 0; i < 9; i++ {
		loans = append(loans, lending.Loan{ID: i + 1, BookID: 1, BorrowedAt: borrowedAt, IsActive: true})
	}

	// act + assert - nine open loans leave one copy: 1/10 == 0.1, still loanable
	assert.True(t, lending.CanBeLoanable(book, loans, 0.1))

	// a tenth open loan exhausts the stock
	loans = append(loans, lending.Loan{ID: 10, BookID: 1, BorrowedAt: borrowedAt, IsActive: true})
	assert.False(t, lending.CanBeLoanable(book, loans, 0.1))
}

func Test_CanBeLoanable_UsesLoanableStockAsDenominator(t *testing.T) {
	// arrange - 10 total but only 2 loanable; one open loan leaves 1 of 2
	book := lending.Book{ID: 1, TotalCopies: 10, ReadingRoomCopies: 8}
	loans := []lending.Loan{{ID: 1, BookID: 1, BorrowedAt: fixedNow.Add(-time.Hour), IsActive: true}}

	// act + assert - 1/2 = 0.5 measured against loanable stock, not 1/10 against total
	assert.True(t, lending.CanBeLoanable(book, loans, 0.4))
	assert.False(t, lending.CanBeLoanable(book, loans, 0.6))
}

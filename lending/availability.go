package lending

// OpenLoanCount counts the loans with no recorded return date, regardless of
// their active flag.
func OpenLoanCount(loans []Loan) int {
	count := 0

	for _, loan := range loans {
		if loan.IsOpen() {
			count++
		}
	}

	return count
}

// LoanableStock is the number of copies that may leave the building:
// total copies minus the reading-room-only ones.
func LoanableStock(book Book) int {
	return book.TotalCopies - book.ReadingRoomCopies
}

// AvailableCopies derives the book's currently loanable copy count from its
// copy counts and the supplied loan records for that book.
func AvailableCopies(book Book, loans []Loan) int {
	return LoanableStock(book) - OpenLoanCount(loans)
}

// CanBeLoanable reports whether the book may be lent at all under the capacity
// reservation rule: a configurable minimum fraction of the loanable stock is
// kept in reserve even when demand is high. A book whose copies are all
// reading-room-only is never loanable.
func CanBeLoanable(book Book, loans []Loan, minAvailablePercentage float64) bool {
	stock := LoanableStock(book)
	if stock <= 0 {
		return false
	}

	return float64(AvailableCopies(book, loans)) >= float64(stock)*minAvailablePercentage
}

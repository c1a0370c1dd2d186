package lendingtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openlibro/library-lending-go/lending"
)

// MemoryStore implements all four lending repository contracts in memory.
// It is safe for concurrent use. AddLoan assigns sequential loan ids.
type MemoryStore struct {
	mu              sync.RWMutex
	categories      map[int]lending.Category
	books           map[int]lending.Book
	readers         map[int]lending.Reader
	loans           map[int]lending.Loan
	nextLoanID      int
	addLoanFault    []error
	updateLoanFault []error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		categories: make(map[int]lending.Category),
		books:      make(map[int]lending.Book),
		readers:    make(map[int]lending.Reader),
		loans:      make(map[int]lending.Loan),
		nextLoanID: 1,
	}
}

// PutCategory stores or replaces a category.
func (m *MemoryStore) PutCategory(category lending.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.categories[category.ID] = category
}

// PutBook stores or replaces a book.
func (m *MemoryStore) PutBook(book lending.Book) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.books[book.ID] = book
}

// PutReader stores or replaces a reader.
func (m *MemoryStore) PutReader(reader lending.Reader) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readers[reader.ID] = reader
}

// PutLoan stores or replaces a loan, assigning an id when none is set.
func (m *MemoryStore) PutLoan(loan lending.Loan) lending.Loan {
	m.mu.Lock()
	defer m.mu.Unlock()

	if loan.ID == 0 {
		loan.ID = m.nextLoanID
	}

	if loan.ID >= m.nextLoanID {
		m.nextLoanID = loan.ID + 1
	}

	m.loans[loan.ID] = loan

	return loan
}

// QueueAddLoanError makes the next AddLoan call fail with err. Queued errors
// are consumed in order; a nil entry makes that call succeed.
func (m *MemoryStore) QueueAddLoanError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addLoanFault = append(m.addLoanFault, err)
}

// QueueUpdateLoanError makes the next UpdateLoan call fail with err. Queued
// errors are consumed in order; a nil entry makes that call succeed.
func (m *MemoryStore) QueueUpdateLoanError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updateLoanFault = append(m.updateLoanFault, err)
}

// LoanCount returns the number of stored loans.
func (m *MemoryStore) LoanCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.loans)
}

// GetCategoryByID implements lending.CategoryRepository.
func (m *MemoryStore) GetCategoryByID(_ context.Context, id int) (lending.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	category, ok := m.categories[id]
	if !ok {
		return lending.Category{}, fmt.Errorf("%w: id %d", lending.ErrCategoryNotFound, id)
	}

	return category, nil
}

// GetCategoriesByParentID implements lending.CategoryRepository.
func (m *MemoryStore) GetCategoriesByParentID(_ context.Context, parentID int) ([]lending.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	children := make([]lending.Category, 0)

	for _, category := range m.categories {
		if category.ParentID != nil && *category.ParentID == parentID {
			children = append(children, category)
		}
	}

	return children, nil
}

// GetBookByID implements lending.BookRepository.
func (m *MemoryStore) GetBookByID(_ context.Context, id int) (lending.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	book, ok := m.books[id]
	if !ok {
		return lending.Book{}, fmt.Errorf("%w: id %d", lending.ErrBookNotFound, id)
	}

	return book, nil
}

// GetBooksByCategoryID implements lending.BookRepository.
func (m *MemoryStore) GetBooksByCategoryID(_ context.Context, categoryID int) ([]lending.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	books := make([]lending.Book, 0)

	for _, book := range m.books {
		for _, id := range book.CategoryIDs {
			if id == categoryID {
				books = append(books, book)
				break
			}
		}
	}

	return books, nil
}

// GetReaderByID implements lending.ReaderRepository.
func (m *MemoryStore) GetReaderByID(_ context.Context, id int) (lending.Reader, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reader, ok := m.readers[id]
	if !ok {
		return lending.Reader{}, fmt.Errorf("%w: id %d", lending.ErrReaderNotFound, id)
	}

	return reader, nil
}

// GetLoanByID implements lending.LoanRepository.
func (m *MemoryStore) GetLoanByID(_ context.Context, id int) (lending.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loan, ok := m.loans[id]
	if !ok {
		return lending.Loan{}, fmt.Errorf("%w: id %d", lending.ErrLoanNotFound, id)
	}

	return loan, nil
}

// GetActiveLoansByReaderID implements lending.LoanRepository.
func (m *MemoryStore) GetActiveLoansByReaderID(_ context.Context, readerID int) ([]lending.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loans := make([]lending.Loan, 0)

	for _, loan := range m.loans {
		if loan.ReaderID == readerID && loan.IsActive {
			loans = append(loans, loan)
		}
	}

	return loans, nil
}

// GetLoansByBookID implements lending.LoanRepository.
func (m *MemoryStore) GetLoansByBookID(_ context.Context, bookID int) ([]lending.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loans := make([]lending.Loan, 0)

	for _, loan := range m.loans {
		if loan.BookID == bookID {
			loans = append(loans, loan)
		}
	}

	return loans, nil
}

// GetLoansBetween implements lending.LoanRepository. Both bounds are inclusive.
func (m *MemoryStore) GetLoansBetween(_ context.Context, from time.Time, to time.Time) ([]lending.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loans := make([]lending.Loan, 0)

	for _, loan := range m.loans {
		if !loan.BorrowedAt.Before(from) && !loan.BorrowedAt.After(to) {
			loans = append(loans, loan)
		}
	}

	return loans, nil
}

// AddLoan implements lending.LoanRepository.
func (m *MemoryStore) AddLoan(_ context.Context, loan lending.Loan) (lending.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.addLoanFault) > 0 {
		fault := m.addLoanFault[0]
		m.addLoanFault = m.addLoanFault[1:]

		if fault != nil {
			return lending.Loan{}, fault
		}
	}

	loan.ID = m.nextLoanID
	m.nextLoanID++
	m.loans[loan.ID] = loan

	return loan, nil
}

// UpdateLoan implements lending.LoanRepository.
func (m *MemoryStore) UpdateLoan(_ context.Context, loan lending.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.updateLoanFault) > 0 {
		fault := m.updateLoanFault[0]
		m.updateLoanFault = m.updateLoanFault[1:]

		if fault != nil {
			return fault
		}
	}

	if _, ok := m.loans[loan.ID]; !ok {
		return fmt.Errorf("%w: id %d", lending.ErrLoanNotFound, loan.ID)
	}

	m.loans[loan.ID] = loan

	return nil
}

// Interface guards.
var (
	_ lending.CategoryRepository = (*MemoryStore)(nil)
	_ lending.BookRepository     = (*MemoryStore)(nil)
	_ lending.ReaderRepository   = (*MemoryStore)(nil)
	_ lending.LoanRepository     = (*MemoryStore)(nil)
)

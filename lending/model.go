package lending

import "time"

// Category is a node in the hierarchical classification tree that books are
// tagged with. The parent relation forms a forest: a nil ParentID marks a root.
// Children are derived by lookup, never stored on the node itself.
type Category struct {
	ID       int
	Name     string
	ParentID *int
}

// Book carries the copy counts the engine decides on. CategoryIDs holds the
// categories the book is tagged with (capped by Policy.MaxCategoriesPerBook,
// pairwise unrelated in the hierarchy). Invariant: ReadingRoomCopies <= TotalCopies.
type Book struct {
	ID                int
	ISBN              string
	Title             string
	Author            string
	TotalCopies       int
	ReadingRoomCopies int
	CategoryIDs       []int
}

// Reader is a library member. Staff readers get doubled quotas, a halved
// re-borrow cooldown and no daily cap.
type Reader struct {
	ID      int
	Name    string
	IsStaff bool
}

// Loan is a single borrowing record. It is created only through
// BorrowingService.Borrow / CreateBorrowings and mutated only by Extend and
// Return. StaffID references the staff member who processed the loan on behalf
// of the reader, if any.
type Loan struct {
	ID             int
	ReaderID       int
	StaffID        *int
	BookID         int
	BorrowedAt     time.Time
	DueAt          time.Time
	ReturnedAt     *time.Time
	IsActive       bool
	InitialDays    int
	ExtensionDays  int
	LastExtendedAt *time.Time
}

// IsOpen reports whether the loan has no recorded return yet,
// regardless of the active flag.
func (l Loan) IsOpen() bool {
	return l.ReturnedAt == nil
}

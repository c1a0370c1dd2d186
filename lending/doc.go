// Package lending implements the borrowing eligibility and loan lifecycle engine
// of a library system.
//
// The engine is synchronous and holds no state between calls beyond the injected
// Policy: every operation reads from the supplied repositories, evaluates the
// lending rules purely in memory, and performs at most one write. Rule rejections
// are surfaced as ErrRuleViolation errors carrying a human-readable reason;
// infrastructure failures keep their original cause via error wrapping.
//
// Key types:
//   - Policy: immutable numeric policy knobs (quotas, windows, percentages)
//   - Hierarchy: traversal over the category tree (ancestors, descendants)
//   - Engine: the single-book admission decision (CanBorrowBook / CheckBorrow)
//   - BorrowingService: multi-book requests plus the loan lifecycle
//     (CreateBorrowings, Borrow, Return, Extend)
//
// Usage example:
//
//	engine, _ := lending.NewEngine(categories, books, readers, loans, lending.DefaultPolicy())
//	service, _ := lending.NewBorrowingService(engine)
//
//	ok, err := engine.CanBorrowBook(ctx, readerID, bookID)
//	created, err := service.CreateBorrowings(ctx, readerID, bookIDs, time.Now(), 28, nil)
package lending

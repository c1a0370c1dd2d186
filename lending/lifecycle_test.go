package lending_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlibro/library-lending-go/lending"
	"github.com/openlibro/library-lending-go/lendingtest"
)

func Test_Return_ClosesTheLoan(t *testing.T) {
	// arrange
	store := lendingtest.NewMemoryStore()
	givenReader(store, 1, false)
	givenBook(store, 10, 5, 0)
	loan := givenOpenLoan(store, 1, 10, fixedNow.AddDate(0, 0, -7))
	service := newTestService(t, newTestEngine(t, store, lending.DefaultPolicy()))

	// act
	returned, err := service.Return(context.Background(), loan.ID, fixedNow)

	// assert
	require.NoError(t, err)
	assert.False(t, returned.IsActive)
	assert.False(t, returned.IsOpen())
	require.NotNil(t, returned.ReturnedAt)
	assert.Equal(t, fixedNow, *returned.ReturnedAt)

	stored, getErr := store.GetLoanByID(context.Background(), loan.ID)
	require.NoError(t, getErr)
	assert.False(t, stored.IsActive)
	require.NotNil(t, stored.ReturnedAt)
}

func Test_Return_Rejects_WhenLoanAlreadyClosed(t *testing.T) {
	// arrange - closed loans have no transition back
	store := lendingtest.NewMemoryStore()
	givenReader(store, 1, false)
	givenBook(store, 10, 5, 0)
	loan := givenClosedLoan(store, 1, 10, fixedNow.AddDate(0, 0, -20), fixedNow.AddDate(0, 0, -5))
	service := newTestService(t, newTestEngine(t, store, lending.DefaultPolicy()))

	// act
	_, err := service.Return(context.Background(), loan.ID, fixedNow)

	// assert
	assertRuleViolation(t, err, "loan is not active")
}

func Test_Return_Error_WhenLoanUnknown(t *testing.T) {
	store := lendingtest.NewMemoryStore()
	service := newTestService(t, newTestEngine(t, store, lending.DefaultPolicy()))

	_, err := service.Return(context.Background(), 99, fixedNow)

	assert.ErrorIs(t, err, lending.ErrLoanNotFound)
}

func Test_Return_Error_WhenArgumentsInvalid(t *testing.T) {
	store := lendingtest.NewMemoryStore()
	service := newTestService(t, newTestEngine(t, store, lending.DefaultPolicy()))

	_, err := service.Return(context.Background(), 0, fixedNow)
	assert.ErrorIs(t, err, lending.ErrInvalidArgument)

	_, err = service.Return(context.Background(), 1, time.Time{})
	assert.ErrorIs(t, err, lending.ErrInvalidArgument)
}

func Test_Return_WrapsPersistenceFailure(t *testing.T) {
	// arrange
	store := lendingtest.NewMemoryStore()
	givenReader(store, 1, false)
	givenBook(store, 10, 5, 0)
	loan := givenOpenLoan(store, 1, 10, fixedNow.AddDate(0, 0, -7))
	cause := errors.New("connection reset")
	store.QueueUpdateLoanError(cause)
	service := newTestService(t, newTestEngine(t, store, lending.DefaultPolicy()))

	// act
	_, err := service.Return(context.Background(), loan.ID, fixedNow)

	// assert
	assert.ErrorIs(t, err, lending.ErrPersistenceFailed)
	assert.ErrorIs(t, err, cause)
}

func Test_Extend_MovesTheDueDateOut(t *testing.T) {
	// arrange
	store := lendingtest.NewMemoryStore()
	givenReader(store, 1, false)
	givenBook(store, 10, 5, 0)
	loan := givenOpenLoan(store, 1, 10, fixedNow.AddDate(0, 0, -14))
	service := newTestService(t, newTestEngine(t, store, lending.DefaultPolicy()))

	// act
	extended, err := service.Extend(context.Background(), loan.ID, 7, fixedNow)

	// assert
	require.NoError(t, err)
	assert.Equal(t, loan.DueAt.AddDate(0, 0, 7), extended.DueAt)
	assert.Equal(t, 7, extended.ExtensionDays)
	require.NotNil(t, extended.LastExtendedAt)
	assert.Equal(t, fixedNow, *extended.LastExtendedAt)

	stored, getErr := store.GetLoanByID(context.Background(), loan.ID)
	require.NoError(t, getErr)
	assert.Equal(t, 7, stored.ExtensionDays)
}

func Test_Extend_Rejects_WhenLoanNotActive(t *testing.T) {
	store := lendingtest.NewMemoryStore()
	givenReader(store, 1, false)
	givenBook(store, 10, 5, 0)
	loan := givenClosedLoan(store, 1, 10, fixedNow.AddDate(0, 0, -20), fixedNow.AddDate(0, 0, -5))
	service := newTestService(t, newTestEngine(t, store, lending.DefaultPolicy()))

	_, err := service.Extend(context.Background(), loan.ID, 7, fixedNow)

	assertRuleViolation(t, err, "loan is not active")
}

func Test_Extend_Error_WhenLoanUnknown(t *testing.T) {
	store := lendingtest.NewMemoryStore()
	service := newTestService(t, newTestEngine(t, store, lending.DefaultPolicy()))

	_, err := service.Extend(context.Background(), 99, 7, fixedNow)

	assert.ErrorIs(t, err, lending.ErrLoanNotFound)
}

func Test_Extend_Error_WhenArgumentsInvalid(t *testing.T) {
	store := lendingtest.NewMemoryStore()
	service := newTestService(t, newTestEngine(t, store, lending.DefaultPolicy()))
	ctx := context.Background()

	_, err := service.Extend(ctx, 0, 7, fixedNow)
	assert.ErrorIs(t, err, lending.ErrInvalidArgument)

	_, err = service.Extend(ctx, 1, 0, fixedNow)
	assert.ErrorIs(t, err, lending.ErrInvalidArgument)

	_, err = service.Extend(ctx, 1, 7, time.Time{})
	assert.ErrorIs(t, err, lending.ErrInvalidArgument)
}

func Test_Extend_LifetimeCap(t *testing.T) {
	setup := func(alreadyExtended int) (lending.BorrowingService, lending.Loan) {
		store := lendingtest.NewMemoryStore()
		givenReader(store, 1, false)
		givenBook(store, 10, 5, 0)

		borrowedAt := fixedNow.AddDate(0, 0, -14)
		loan := store.PutLoan(lending.Loan{
			ReaderID:      1,
			BookID:        10,
			BorrowedAt:    borrowedAt,
			DueAt:         borrowedAt.AddDate(0, 0, 28+alreadyExtended),
			IsActive:      true,
			InitialDays:   28,
			ExtensionDays: alreadyExtended,
		})

		return newTestService(t, newTestEngine(t, store, lending.DefaultPolicy())), loan
	}

	t.Run("rejects beyond the per-loan allowance", func(t *testing.T) {
		service, loan := setup(22)

		_, err := service.Extend(context.Background(), loan.ID, 7, fixedNow)

		assertRuleViolation(t, err, "lifetime allowance")
	})

	t.Run("approves exactly at the allowance", func(t *testing.T) {
		service, loan := setup(21)

		extended, err := service.Extend(context.Background(), loan.ID, 7, fixedNow)

		require.NoError(t, err)
		assert.Equal(t, 28, extended.ExtensionDays)
	})
}

func Test_Extend_AvailabilityDenominatesAgainstTotalCopies(t *testing.T) {
	// arrange - one free copy out of twenty total, eighteen of them reading-room
	// only. Borrow-time reservation would measure 1 of 2 loanable and pass;
	// the extension rule measures 1 of 20 and rejects.
	store := lendingtest.NewMemoryStore()
	givenReader(store, 1, false)
	givenBook(store, 10, 20, 18)
	loan := givenOpenLoan(store, 1, 10, fixedNow.AddDate(0, 0, -14))
	service := newTestService(t, newTestEngine(t, store, lending.DefaultPolicy()))

	// act
	_, err := service.Extend(context.Background(), loan.ID, 7, fixedNow)

	// assert
	assertRuleViolation(t, err, "availability is too low")
}

func Test_Extend_Rejects_WhenNoCopyAvailable(t *testing.T) {
	// arrange - every copy is out, including the one on this loan
	store := lendingtest.NewMemoryStore()
	givenReader(store, 1, false)
	givenBook(store, 10, 3, 0)
	loan := givenOpenLoan(store, 1, 10, fixedNow.AddDate(0, 0, -14))
	givenOpenLoan(store, 2, 10, fixedNow.AddDate(0, 0, -10))
	givenOpenLoan(store, 3, 10, fixedNow.AddDate(0, 0, -5))
	service := newTestService(t, newTestEngine(t, store, lending.DefaultPolicy()))

	// act
	_, err := service.Extend(context.Background(), loan.ID, 7, fixedNow)

	// assert
	assertRuleViolation(t, err, "availability is too low")
}

func Test_Extend_RollingBudget(t *testing.T) {
	setup := func(isStaff bool, otherLoanAge time.Duration, otherGranted int) (lending.BorrowingService, lending.Loan) {
		store := lendingtest.NewMemoryStore()
		givenReader(store, 1, isStaff)
		givenBook(store, 10, 5, 0)
		givenBook(store, 11, 5, 0)

		// an earlier loan of the same reader that already consumed extension days
		otherBorrowedAt := fixedNow.Add(-otherLoanAge)
		store.PutLoan(lending.Loan{
			ReaderID:      1,
			BookID:        11,
			BorrowedAt:    otherBorrowedAt,
			DueAt:         otherBorrowedAt.AddDate(0, 0, 28+otherGranted),
			ReturnedAt:    lendingtest.TimePtr(fixedNow.AddDate(0, 0, -1)),
			InitialDays:   28,
			ExtensionDays: otherGranted,
		})

		loan := givenOpenLoan(store, 1, 10, fixedNow.AddDate(0, 0, -14))

		return newTestService(t, newTestEngine(t, store, lending.DefaultPolicy())), loan
	}

	const twoMonths = 2 * 30 * 24 * time.Hour
	const fourMonths = 4 * 30 * 24 * time.Hour

	t.Run("rejects when the window budget would be exceeded", func(t *testing.T) {
		service, loan := setup(false, twoMonths, 20)

		_, err := service.Extend(context.Background(), loan.ID, 10, fixedNow)

		assertRuleViolation(t, err, "rolling extension budget")
	})

	t.Run("approves exactly at the budget", func(t *testing.T) {
		service, loan := setup(false, twoMonths, 18)

		_, err := service.Extend(context.Background(), loan.ID, 10, fixedNow)

		assert.NoError(t, err)
	})

	t.Run("loans borrowed before the window do not count", func(t *testing.T) {
		service, loan := setup(false, fourMonths, 20)

		_, err := service.Extend(context.Background(), loan.ID, 10, fixedNow)

		assert.NoError(t, err)
	})

	t.Run("staff budget is doubled", func(t *testing.T) {
		service, loan := setup(true, twoMonths, 20)

		_, err := service.Extend(context.Background(), loan.ID, 10, fixedNow)

		assert.NoError(t, err)
	})
}

func Test_ExtendAdvanced_UsesTheEngineClock(t *testing.T) {
	// arrange
	store := lendingtest.NewMemoryStore()
	givenReader(store, 1, false)
	givenBook(store, 10, 5, 0)
	loan := givenOpenLoan(store, 1, 10, fixedNow.AddDate(0, 0, -14))
	service := newTestService(t, newTestEngine(t, store, lending.DefaultPolicy()))

	// act
	extended, err := service.ExtendAdvanced(context.Background(), loan.ID, 7)

	// assert
	require.NoError(t, err)
	require.NotNil(t, extended.LastExtendedAt)
	assert.Equal(t, fixedNow, *extended.LastExtendedAt)
}

func Test_Extend_WrapsPersistenceFailure(t *testing.T) {
	// arrange
	store := lendingtest.NewMemoryStore()
	givenReader(store, 1, false)
	givenBook(store, 10, 5, 0)
	loan := givenOpenLoan(store, 1, 10, fixedNow.AddDate(0, 0, -14))
	cause := errors.New("connection reset")
	store.QueueUpdateLoanError(cause)
	service := newTestService(t, newTestEngine(t, store, lending.DefaultPolicy()))

	// act
	_, err := service.Extend(context.Background(), loan.ID, 7, fixedNow)

	// assert
	assert.ErrorIs(t, err, lending.ErrPersistenceFailed)
	assert.ErrorIs(t, err, cause)
}

package lending_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlibro/library-lending-go/lending"
)

func Test_DefaultPolicy_IsValid(t *testing.T) {
	assert.NoError(t, lending.DefaultPolicy().Validate())
}

func Test_Policy_Validate_Error_WhenKnobNotPositive(t *testing.T) {
	policy := lending.DefaultPolicy()
	policy.MaxBooksPerDay = 0

	assert.ErrorIs(t, policy.Validate(), lending.ErrInvalidPolicy)
}

func Test_Policy_Validate_Error_WhenPercentageOutOfRange(t *testing.T) {
	policy := lending.DefaultPolicy()
	policy.MinAvailablePercentage = 1.5

	assert.ErrorIs(t, policy.Validate(), lending.ErrInvalidPolicy)
}

func Test_Policy_StaffScaling(t *testing.T) {
	// arrange
	policy := lending.DefaultPolicy()

	// assert - staff doubles the quotas
	assert.Equal(t, 10, policy.ActiveLoanLimit(false))
	assert.Equal(t, 20, policy.ActiveLoanLimit(true))
	assert.Equal(t, 10, policy.PeriodLimit(false))
	assert.Equal(t, 20, policy.PeriodLimit(true))
	assert.Equal(t, 6, policy.RequestLimit(false))
	assert.Equal(t, 12, policy.RequestLimit(true))
	assert.Equal(t, 3, policy.CategoryLimit(false))
	assert.Equal(t, 6, policy.CategoryLimit(true))
	assert.Equal(t, 28, policy.ExtensionBudget(false))
	assert.Equal(t, 56, policy.ExtensionBudget(true))

	// staff halves the cooldown
	assert.Equal(t, 10, policy.BorrowCooldownDays(false))
	assert.Equal(t, 5, policy.BorrowCooldownDays(true))
}

func Test_Policy_BorrowCooldownDays_TruncatesForStaff(t *testing.T) {
	// arrange - odd cooldown: integer division, not rounding
	policy := lending.DefaultPolicy()
	policy.MinDaysBetweenBorrows = 7

	// assert
	assert.Equal(t, 3, policy.BorrowCooldownDays(true))
}

func Test_PolicyFromYAML_OverridesOnTopOfDefaults(t *testing.T) {
	// arrange
	data := []byte("max_books_per_day: 8\nmin_available_percentage: 0.25\n")

	// act
	policy, err := lending.PolicyFromYAML(data)

	// assert - named knobs override, the rest keep their defaults
	require.NoError(t, err)
	assert.Equal(t, 8, policy.MaxBooksPerDay)
	assert.InDelta(t, 0.25, policy.MinAvailablePercentage, 0.0001)
	assert.Equal(t, 10, policy.MaxBooksPerPeriod)
	assert.Equal(t, 28, policy.MaxExtensionDays)
}

func Test_PolicyFromYAML_Error_WhenMalformed(t *testing.T) {
	_, err := lending.PolicyFromYAML([]byte("max_books_per_day: [not a number"))

	assert.ErrorIs(t, err, lending.ErrInvalidPolicy)
}

func Test_PolicyFromYAML_Error_WhenOverrideInvalid(t *testing.T) {
	_, err := lending.PolicyFromYAML([]byte("max_extension_days: -3\n"))

	assert.ErrorIs(t, err, lending.ErrInvalidPolicy)
}

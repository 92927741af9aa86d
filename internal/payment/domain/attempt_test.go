package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAttemptKeepsOnlyBIN(t *testing.T) {
	a, err := NewAttempt("1001", 199900, "USD", "4543 6012 3456 7890", 3)
	require.NoError(t, err)

	assert.Equal(t, "454360", a.CardBIN)
	assert.Equal(t, AttemptInitiated, a.Status)
	assert.NotEmpty(t, a.GatewayAttemptID)
	assert.NotEqual(t, a.ID, a.GatewayAttemptID)
	assert.Equal(t, 3, a.Installments)
}

func TestNormalizeBIN(t *testing.T) {
	bin, err := NormalizeBIN("4543-60")
	require.NoError(t, err)
	assert.Equal(t, "454360", bin)

	_, err = NormalizeBIN("45436")
	assert.ErrorIs(t, err, ErrInvalidBIN)

	_, err = NormalizeBIN("45436a")
	assert.ErrorIs(t, err, ErrInvalidBIN)

	_, err = NormalizeBIN("4543601")
	assert.ErrorIs(t, err, ErrInvalidBIN)
}

func TestAttemptStatusTerminality(t *testing.T) {
	assert.True(t, AttemptInitiated.NonTerminal())
	assert.True(t, AttemptAwaitingAuth.NonTerminal())
	assert.False(t, AttemptSettledSuccess.NonTerminal())
	assert.False(t, AttemptSettledFailure.NonTerminal())
	assert.False(t, AttemptPendingReview.NonTerminal())
	assert.False(t, AttemptExpired.NonTerminal())
}

func TestCentsFromDecimal(t *testing.T) {
	c, err := CentsFromDecimal(decimal.RequireFromString("1999.00"))
	require.NoError(t, err)
	assert.Equal(t, int64(199900), c)

	c, err = CentsFromDecimal(decimal.RequireFromString("699.67"))
	require.NoError(t, err)
	assert.Equal(t, int64(69967), c)

	_, err = CentsFromDecimal(decimal.RequireFromString("10.005"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = CentsFromDecimal(decimal.RequireFromString("-1"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = CentsFromDecimal(decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestOutcomeTargetStatus(t *testing.T) {
	assert.Equal(t, AttemptSettledSuccess, Outcome{Kind: OutcomeSuccess}.TargetStatus())
	assert.Equal(t, AttemptSettledFailure, Outcome{Kind: OutcomeDeclined}.TargetStatus())
	assert.Equal(t, AttemptPendingReview, Outcome{Kind: OutcomePendingReview}.TargetStatus())
}

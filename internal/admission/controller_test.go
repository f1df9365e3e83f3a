package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "twin/internal/errors"
	"twin/internal/logging"
)

func TestControllerSoftBlocks(t *testing.T) {
	limiter, err := NewRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	require.NoError(t, err)
	budget := NewTokenBudget(10)
	ctrl := NewController(limiter, budget, WithLogger(logging.Nop()))

	require.NoError(t, ctrl.AdmitClient("1.2.3.4"))
	err = ctrl.AdmitClient("1.2.3.4")
	block, ok := apperrors.AsPolicySoftBlock(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ReasonRateLimited, block.Reason)
	assert.Equal(t, RateLimitedMessage, block.Message)

	require.NoError(t, ctrl.AdmitBudget())
	ctrl.RecordUsage(10)
	block, ok = apperrors.AsPolicySoftBlock(ctrl.AdmitBudget())
	require.True(t, ok)
	assert.Equal(t, apperrors.ReasonBudgetExhausted, block.Reason)
	assert.Equal(t, BudgetExhaustedMessage, block.Message)
}

func TestControllerWithoutGatesAdmitsEverything(t *testing.T) {
	ctrl := NewController(nil, nil)
	assert.NoError(t, ctrl.AdmitClient("x"))
	assert.NoError(t, ctrl.AdmitBudget())
	ctrl.RecordUsage(5)
}

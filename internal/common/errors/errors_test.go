package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeQueryExecutionFailed, 3},
		{ErrCodePlacesAPIError, 3},
		{ErrCodeSearchTimeout, 2},
		{ErrCodePlacesAPITimeout, 2},
		{ErrCodeCityNotFound, 0},
		{ErrCodeDuplicateListEntry, 0},
		{ErrCodeInternal, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetRetryCount(tt.code))
		})
	}
}

func TestConvertToBPMNError(t *testing.T) {
	stdErr := NewCategoryNotFoundError("pizza").WithMetadata("citySlug", "london")

	bpmnErr := ConvertToBPMNError(stdErr)

	assert.Equal(t, "CATEGORY_NOT_FOUND", bpmnErr.Code)
	assert.Equal(t, 0, bpmnErr.Retries)
	assert.False(t, bpmnErr.Retryable)

	vars := bpmnErr.ToErrorVariables()
	assert.Equal(t, "CATEGORY_NOT_FOUND", vars["errorCode"])
	assert.Equal(t, "london", vars["citySlug"])
	assert.Equal(t, "CATEGORY_NOT_FOUND", vars["originalErrorCode"])
}

func TestAsStandardError(t *testing.T) {
	t.Run("finds wrapped standard error", func(t *testing.T) {
		inner := NewCityNotFoundError("paris")
		wrapped := fmt.Errorf("ingest: %w", inner)

		got := AsStandardError(wrapped)
		require.NotNil(t, got)
		assert.Equal(t, ErrCodeCityNotFound, got.Code)
	})

	t.Run("deadline becomes retryable timeout", func(t *testing.T) {
		got := AsStandardError(fmt.Errorf("query: %w", context.DeadlineExceeded))
		assert.Equal(t, ErrCodeQueryTimeout, got.Code)
		assert.True(t, got.Retryable)
	})

	t.Run("unknown error is internal", func(t *testing.T) {
		cause := stderrors.New("boom")
		got := AsStandardError(cause)
		assert.Equal(t, ErrCodeInternal, got.Code)
		assert.ErrorIs(t, got, cause)
	})
}

func TestRemainingRetries(t *testing.T) {
	retryable := NewQueryExecutionFailedError("my_list", stderrors.New("conn reset"))

	assert.Equal(t, 3, RemainingRetries(retryable, 5))
	assert.Equal(t, 1, RemainingRetries(retryable, 2))
	assert.Equal(t, 0, RemainingRetries(retryable, 1))
	assert.Equal(t, 0, RemainingRetries(NewInvalidScoreError("score: 11"), 5))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "PLACES", GetErrorCategory(ErrCodePlacesAPITimeout))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeDatabaseInsertFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeIndexNotFound))
	assert.Equal(t, "DOMAIN", GetErrorCategory(ErrCodeRestaurantNotFound))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidScore))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

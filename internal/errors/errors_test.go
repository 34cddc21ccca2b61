package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJurisError_CodeDerivesClassification(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigNotFound, CategoryConfig, SeverityError, false},
		{ErrCodeShardNotFound, CategoryIO, SeverityWarning, false},
		{ErrCodeShardCorrupt, CategoryIO, SeverityWarning, false},
		{ErrCodeDiskFull, CategoryIO, SeverityFatal, false},
		{ErrCodeBackingStoreUnavailable, CategoryIO, SeverityFatal, false},
		{ErrCodeEmbeddingUnavailable, CategoryNetwork, SeverityWarning, true},
		{ErrCodeNetworkTimeout, CategoryNetwork, SeverityWarning, true},
		{ErrCodeQueryEmpty, CategoryValidation, SeverityError, false},
		{ErrCodeWriteConflict, CategoryInternal, SeverityWarning, true},
	}

	for _, tt := range tests {
		err := New(tt.code, "message", nil)
		assert.Equal(t, tt.category, err.Category, tt.code)
		assert.Equal(t, tt.severity, err.Severity, tt.code)
		assert.Equal(t, tt.retryable, err.Retryable, tt.code)
	}
}

func TestJurisError_ErrorAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := New(ErrCodeSearchFailed, "search failed", cause)

	assert.Equal(t, "[ERR_503_SEARCH_FAILED] search failed", err.Error())
	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.True(t, stderrors.Is(err, New(ErrCodeSearchFailed, "other message", nil)))
}

func TestJurisError_Details(t *testing.T) {
	err := ShardNotFound("family_law")

	assert.Equal(t, "family_law", err.Details["area"])
	assert.Equal(t, ErrCodeShardNotFound, GetCode(err))
	assert.False(t, IsRetryable(err))
	assert.False(t, IsFatal(err))
}

func TestShardCorrupt_Suggestion(t *testing.T) {
	err := ShardCorrupt("contract_law", "count mismatch")

	assert.Contains(t, err.Suggestion, "rebuild --area contract_law")
	assert.Equal(t, SeverityWarning, err.Severity)
}

func TestBackingStoreUnavailable_IsFatal(t *testing.T) {
	err := BackingStoreUnavailable(fmt.Errorf("connection refused"))

	assert.True(t, IsFatal(err))
	assert.False(t, IsRetryable(err))
}

func TestWriteConflict_IsRetryable(t *testing.T) {
	err := WriteConflict("family_law")

	assert.True(t, IsRetryable(err))
	assert.Equal(t, "family_law", err.Details["area"])
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))

	wrapped := Wrap(ErrCodeInternal, fmt.Errorf("boom"))
	require.NotNil(t, wrapped)
	assert.Equal(t, "boom", wrapped.Message)
}

func TestHelpers_NonJurisError(t *testing.T) {
	plain := fmt.Errorf("plain error")

	assert.False(t, IsRetryable(plain))
	assert.False(t, IsFatal(plain))
	assert.Empty(t, GetCode(plain))
	assert.Empty(t, GetCategory(plain))
	assert.False(t, IsRetryable(nil))
}

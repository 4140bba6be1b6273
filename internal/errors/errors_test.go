package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("original error")

	wrapped := New(ErrCodeStoreIO, "store write failed", originalErr)

	require.NotNil(t, wrapped)
	assert.Equal(t, originalErr, errors.Unwrap(wrapped))
	assert.True(t, errors.Is(wrapped, originalErr))
}

func TestEngineError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "input fault",
			code:     ErrCodeFileUnreadable,
			message:  "doc.txt is unreadable",
			expected: "[ERR_101_FILE_UNREADABLE] doc.txt is unreadable",
		},
		{
			name:     "store fault",
			code:     ErrCodeStoreIO,
			message:  "disk write failed",
			expected: "[ERR_301_STORE_IO] disk write failed",
		},
		{
			name:     "query fault",
			code:     ErrCodeQueryEmpty,
			message:  "query tokenized to empty",
			expected: "[ERR_401_QUERY_EMPTY] query tokenized to empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestKindFromCode(t *testing.T) {
	assert.Equal(t, KindInput, kindFromCode(ErrCodeFileUnreadable))
	assert.Equal(t, KindNERUnavailable, kindFromCode(ErrCodeNERLoadFailed))
	assert.Equal(t, KindStore, kindFromCode(ErrCodeStoreIO))
	assert.Equal(t, KindQuery, kindFromCode(ErrCodeQueryEmpty))
	assert.Equal(t, KindConsistency, kindFromCode(ErrCodeOrphanBM25))
}

func TestStoreFault_IsRetryable(t *testing.T) {
	err := StoreFault("transient write failure", nil)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, KindStore, err.Kind)
}

func TestNERUnavailable_IsFatal(t *testing.T) {
	err := NERUnavailable("model failed to load", nil)
	assert.True(t, IsFatal(err))
	assert.False(t, IsRetryable(err))
}

func TestInputFault_IsWarningNotRetryable(t *testing.T) {
	err := InputFault("bad byte sequence", nil)
	assert.Equal(t, SeverityWarning, err.Severity)
	assert.False(t, IsRetryable(err))
}

func TestWithDetail_AttachesContext(t *testing.T) {
	err := StoreFault("upsert failed", nil).WithDetail("doc_id", "d42")
	assert.Equal(t, "d42", err.Details["doc_id"])
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeStoreIO, nil))
}

func TestGetKindAndCode_NonEngineError(t *testing.T) {
	plain := errors.New("plain")
	assert.Equal(t, Kind(""), GetKind(plain))
	assert.Equal(t, "", GetCode(plain))
}

func TestGetKindAndCode_EngineError(t *testing.T) {
	err := ConsistencyFault(ErrCodeOrphanBM25, "doc present in bm25 but not store")
	assert.Equal(t, KindConsistency, GetKind(err))
	assert.Equal(t, ErrCodeOrphanBM25, GetCode(err))
}

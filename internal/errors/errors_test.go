package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code     string
		category Category
		severity Severity
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError},
		{ErrCodeFileNotFound, CategoryIO, SeverityError},
		{ErrCodeStoreCorrupt, CategoryIO, SeverityFatal},
		{ErrCodeEmbedTimeout, CategoryNetwork, SeverityWarning},
		{ErrCodeQueryEmpty, CategoryValidation, SeverityError},
		{ErrCodeSearchFailed, CategoryInternal, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
		})
	}
}

func TestWrap_PreservesCauseChain(t *testing.T) {
	// Given: a wrapped underlying error
	cause := fmt.Errorf("disk exploded")
	err := Wrap(ErrCodeStorage, cause)

	// Then: errors.Is/Unwrap reach the cause
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "[ERR_205_STORAGE] disk exploded", err.Error())
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeStorage, nil))
	assert.Nil(t, Wrapf(ErrCodeStorage, nil, "ignored"))
}

func TestWrapf_FormatsSiteMessage(t *testing.T) {
	cause := fmt.Errorf("no such table")
	err := Wrapf(ErrCodeStorage, cause, "insert chunk %s", "a.go:1")

	require.NotNil(t, err)
	assert.Contains(t, err.Message, "insert chunk a.go:1")
	assert.True(t, errors.Is(err, cause))
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(ErrCodeQueryEmpty, "first", nil)
	b := New(ErrCodeQueryEmpty, "second", nil)
	c := New(ErrCodeInvalidPath, "other", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestIsRetryable_OnlyNetworkCodes(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeEmbedTimeout, "slow", nil)))
	assert.True(t, IsRetryable(New(ErrCodeEmbedUnavailable, "down", nil)))
	assert.False(t, IsRetryable(New(ErrCodeStorage, "io", nil)))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestIsFatal_StoreCorrupt(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeStoreCorrupt, "bad magic", nil)))
	assert.False(t, IsFatal(New(ErrCodeFileNotFound, "gone", nil)))
}

func TestWithDetailAndSuggestion(t *testing.T) {
	err := New(ErrCodeConfigInvalid, "bad k1", nil).
		WithDetail("k1", "-1").
		WithSuggestion("k1 must be positive")

	assert.Equal(t, "-1", err.Details["k1"])
	assert.Equal(t, "k1 must be positive", err.Suggestion)
}

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	err := New(ErrCodeConfigNotFound, "config missing", nil).
		WithSuggestion("run with --config")

	out := FormatForCLI(err)
	assert.Contains(t, out, "Error: config missing")
	assert.Contains(t, out, "Hint: run with --config")
	assert.Contains(t, out, "Code: ERR_101_CONFIG_NOT_FOUND")
}

func TestFormatForCLI_WrapsPlainErrors(t *testing.T) {
	out := FormatForCLI(errors.New("plain failure"))
	assert.Contains(t, out, "plain failure")
	assert.Contains(t, out, ErrCodeInternal)
}

func TestFormatJSON_RoundTrip(t *testing.T) {
	err := Wrap(ErrCodeEmbedTimeout, fmt.Errorf("deadline exceeded"))

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ErrCodeEmbedTimeout, decoded["code"])
	assert.Equal(t, "NETWORK", decoded["category"])
	assert.Equal(t, true, decoded["retryable"])
}

func TestFormatForLog_Attributes(t *testing.T) {
	err := New(ErrCodeChunkingFailed, "parse blew up", fmt.Errorf("syntax")).
		WithDetail("file", "a.go")

	attrs := FormatForLog(err)
	assert.Equal(t, ErrCodeChunkingFailed, attrs["error_code"])
	assert.Equal(t, "syntax", attrs["cause"])
	assert.Equal(t, "a.go", attrs["detail_file"])
}

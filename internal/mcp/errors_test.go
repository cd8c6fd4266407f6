package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/settingsearch/internal/async"
	serrors "github.com/Aman-CERP/settingsearch/internal/errors"
)

func TestMapError_NilError(t *testing.T) {
	// Given: nil error
	var err error

	// When: mapping the error
	result := MapError(err)

	// Then: returns nil
	assert.Nil(t, result)
}

func TestMapError_Table(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"wrapped deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), ErrCodeTimeout},
		{"service closed", async.ErrServiceClosed, ErrCodeUnavailable},
		{"tool not found", ErrToolNotFound, ErrCodeMethodNotFound},
		{"invalid params", ErrInvalidParams, ErrCodeInvalidParams},
		{"unknown", errors.New("boom"), ErrCodeInternalError},
		{"empty query", serrors.New(serrors.ErrCodeQueryEmpty, "query is empty", nil), ErrCodeInvalidParams},
		{"index locked", serrors.New(serrors.ErrCodeIndexLocked, "index is locked", nil), ErrCodeIndexBusy},
		{"store", serrors.StoreError("disk full", errors.New("ENOSPC")), ErrCodeStore},
		{"search failed", serrors.Wrap(serrors.ErrCodeSearchFailed, errors.New("sql")), ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MapError(tt.err)

			require.NotNil(t, result)
			assert.Equal(t, tt.code, result.Code)
			assert.NotEmpty(t, result.Message)
		})
	}
}

func TestMapError_PassesThroughMCPError(t *testing.T) {
	// Given: an error that is already an MCP error
	orig := NewInvalidParamsError("limit must be positive")

	// When: mapping it wrapped
	result := MapError(fmt.Errorf("tool: %w", orig))

	// Then: the original is returned
	assert.Same(t, orig, result)
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	// Given: a structured error with a suggestion
	err := serrors.New(serrors.ErrCodeIndexLocked, "index is locked", nil).
		WithSuggestion("Wait for the other indexer to finish.")

	// When: mapping the error
	result := MapError(err)

	// Then: the suggestion is part of the message
	require.NotNil(t, result)
	assert.Contains(t, result.Message, "index is locked")
	assert.Contains(t, result.Message, "Wait for the other indexer")
}

func TestMCPError_Error(t *testing.T) {
	err := NewMethodNotFoundError("frobnicate")

	assert.Equal(t, "MCP error -32601: Tool 'frobnicate' not found.", err.Error())
}

// Package mcp exposes the settings search over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aman-CERP/settingsearch/internal/async"
	serrors "github.com/Aman-CERP/settingsearch/internal/errors"
)

// Custom MCP error codes for settingsearch.
const (
	// ErrCodeIndexBusy indicates another process holds the index lock.
	ErrCodeIndexBusy = -32001

	// ErrCodeUnavailable indicates the service is shutting down.
	ErrCodeUnavailable = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeStore indicates the index store failed.
	ErrCodeStore = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Sentinel errors for internal use.
var (
	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidParams indicates invalid parameters were provided.
	ErrInvalidParams = errors.New("invalid parameters")
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var se *serrors.SearchError
	if errors.As(err, &se) {
		return mapSearchError(se)
	}

	switch {
	case errors.Is(err, async.ErrServiceClosed):
		return &MCPError{
			Code:    ErrCodeUnavailable,
			Message: "Settings search is shutting down.",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out.",
		}
	case errors.Is(err, context.Canceled):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request was canceled.",
		}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{
			Code:    ErrCodeMethodNotFound,
			Message: "Tool not found.",
		}
	case errors.Is(err, ErrInvalidParams):
		return &MCPError{
			Code:    ErrCodeInvalidParams,
			Message: "Invalid parameters.",
		}
	default:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: "Internal server error.",
		}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

func mapSearchError(se *serrors.SearchError) *MCPError {
	message := se.Message
	if se.Suggestion != "" {
		message = fmt.Sprintf("%s %s", se.Message, se.Suggestion)
	}

	if se.Code == serrors.ErrCodeIndexLocked {
		return &MCPError{Code: ErrCodeIndexBusy, Message: message}
	}

	switch se.Category {
	case serrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case serrors.CategoryStore:
		return &MCPError{Code: ErrCodeStore, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}

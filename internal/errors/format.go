package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

func asSearchError(err error) *SearchError {
	var se *SearchError
	if stderrors.As(err, &se) {
		return se
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	se := asSearchError(err)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", se.Message))
	if se.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", se.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", se.Code))
	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	se := asSearchError(err)

	je := jsonError{
		Code:       se.Code,
		Message:    se.Message,
		Category:   string(se.Category),
		Severity:   string(se.Severity),
		Details:    se.Details,
		Suggestion: se.Suggestion,
		Retryable:  se.Retryable,
	}
	if se.Cause != nil {
		je.Cause = se.Cause.Error()
	}
	return json.Marshal(je)
}

// LogAttrs flattens an error into slog key-value pairs.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}
	var se *SearchError
	if !stderrors.As(err, &se) {
		return []any{"error", err.Error()}
	}

	attrs := []any{
		"error_code", se.Code,
		"error", se.Message,
		"severity", string(se.Severity),
	}
	if se.Cause != nil {
		attrs = append(attrs, "cause", se.Cause.Error())
	}
	for k, v := range se.Details {
		attrs = append(attrs, "detail_"+k, v)
	}
	return attrs
}

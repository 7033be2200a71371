package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for common failure scenarios.
var (
	ErrServiceNotRunning = errors.New("speaker service not running")
	ErrPlayerNotFound    = errors.New("speaker not found on the bus")
	ErrNotConnected      = errors.New("no Spotify client connected")
	ErrTransport         = errors.New("transport failure")
	ErrRejected          = errors.New("rejected by the speaker")
	ErrBusy              = errors.New("command already in progress")
	ErrInvalidSettings   = errors.New("invalid settings")
	ErrTimeout           = errors.New("request timeout")
	ErrConfigNotFound    = errors.New("config file not found")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// FailureKind distinguishes why a remote operation failed.
type FailureKind int

const (
	// NoFailure means err was nil.
	NoFailure FailureKind = iota
	// TransportFailure means the call never produced an answer.
	TransportFailure
	// LogicalFailure means the backend answered but declined.
	LogicalFailure
)

func (k FailureKind) String() string {
	switch k {
	case TransportFailure:
		return "transport"
	case LogicalFailure:
		return "logical"
	default:
		return "none"
	}
}

// Kind classifies err. Anything that is not a rejection is a transport failure.
func Kind(err error) FailureKind {
	switch {
	case err == nil:
		return NoFailure
	case errors.Is(err, ErrRejected), errors.Is(err, ErrBusy), errors.Is(err, ErrNotConnected):
		return LogicalFailure
	default:
		return TransportFailure
	}
}

// Transport wraps a cause as a transport failure.
func Transport(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, cause)
}

// Rejected returns a logical failure for op.
func Rejected(op string) error {
	return fmt.Errorf("%s: %w", op, ErrRejected)
}

// Result folds a (bool, error) facade answer into a single error.
func Result(op string, ok bool, err error) error {
	if err != nil {
		if errors.Is(err, ErrTransport) {
			return err
		}
		return Transport(op, err)
	}
	if !ok {
		return Rejected(op)
	}
	return nil
}

// PanelError wraps an error with a user-friendly suggestion.
type PanelError struct {
	Err        error
	Suggestion string
}

func (e *PanelError) Error() string {
	return e.Err.Error()
}

func (e *PanelError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &PanelError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var panelErr *PanelError
	if errors.As(err, &panelErr) && panelErr.Suggestion != "" {
		return panelErr.Suggestion
	}

	errStr := strings.ToLower(err.Error())

	if errors.Is(err, ErrServiceNotRunning) || strings.Contains(errStr, "not running") {
		return "Run 'spotpanel start' to start the speaker service"
	}

	if errors.Is(err, ErrPlayerNotFound) || errors.Is(err, ErrNotConnected) ||
		strings.Contains(errStr, "serviceunknown") {
		return "Connect to the speaker from a Spotify app, then try again"
	}

	if errors.Is(err, ErrBusy) {
		return "Wait for the previous command to finish"
	}

	if errors.Is(err, ErrInvalidSettings) {
		return "Run 'spotpanel settings edit' to fix the speaker settings"
	}

	if errors.Is(err, ErrTimeout) || strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") {
		return "Check that 'spotpanel agent' is running and backend.address is correct"
	}

	if errors.Is(err, ErrTransport) {
		return "Check the backend connection and try again"
	}

	if errors.Is(err, ErrConfigNotFound) || errors.Is(err, ErrInvalidConfig) {
		return "Check ~/.config/spotpanel/config.toml"
	}

	if strings.Contains(errStr, "500") || strings.Contains(errStr, "server error") {
		return "The agent is having issues. Check its log and try again"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}

// PartialResult represents a result that may have partial failures.
type PartialResult[T any] struct {
	Data   T
	Errors []error
}

// HasErrors returns true if there were any errors.
func (p *PartialResult[T]) HasErrors() bool {
	return len(p.Errors) > 0
}

// AddError adds an error to the partial result.
func (p *PartialResult[T]) AddError(err error) {
	if err != nil {
		p.Errors = append(p.Errors, err)
	}
}

// ErrorSummary returns a summary of all errors.
func (p *PartialResult[T]) ErrorSummary() string {
	if len(p.Errors) == 0 {
		return ""
	}
	if len(p.Errors) == 1 {
		return p.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(p.Errors)))
	for i, err := range p.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

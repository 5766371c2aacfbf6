package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrCampaignNotFound = errors.New("campaign not found")
)

// GraphLoadError reports that a campaign graph could not be read from the
// entity store, either because the store failed or because it returned rows
// that cannot form a graph.
type GraphLoadError struct {
	CampaignID string
	Err        error
}

func (e *GraphLoadError) Error() string {
	return fmt.Sprintf("failed to load graph for campaign %q: %v", e.CampaignID, e.Err)
}

func (e *GraphLoadError) Unwrap() error {
	return e.Err
}

// FieldViolation names one rejected tuning parameter.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// InvalidOptionsError is returned before any computation starts when the
// requested detection options are out of range.
type InvalidOptionsError struct {
	Violations []FieldViolation
}

func (e *InvalidOptionsError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s %s", v.Field, v.Reason))
	}
	return "invalid detection options: " + strings.Join(parts, "; ")
}

// IsInvalidOptions reports whether err carries an InvalidOptionsError.
func IsInvalidOptions(err error) bool {
	var target *InvalidOptionsError
	return errors.As(err, &target)
}

// IsGraphLoad reports whether err carries a GraphLoadError.
func IsGraphLoad(err error) bool {
	var target *GraphLoadError
	return errors.As(err, &target)
}

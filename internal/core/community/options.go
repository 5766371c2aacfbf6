package community

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/agenthands/loregraph/internal/apperrors"
)

const (
	DefaultResolution       = 1.0
	DefaultMinCommunitySize = 1
	DefaultMaxLevels        = 1
	DefaultMaxIterations    = 100
	DefaultMinImprovement   = 1e-4

	// MaxLevelsLimit and MaxIterationsLimit bound a single run.
	MaxLevelsLimit     = 10
	MaxIterationsLimit = 10000
)

// Options tunes one detection run.
type Options struct {
	// Resolution scales the null-model term; higher values favour more,
	// smaller communities.
	Resolution float64 `json:"resolution" validate:"gte=0"`

	// MinCommunitySize is measured in raw entities at every level.
	MinCommunitySize int `json:"min_community_size" validate:"gte=1"`

	MaxLevels int `json:"max_levels" validate:"gte=1,lte=10"`

	// MaxIterations caps optimizer passes (local move + aggregation).
	MaxIterations int `json:"max_iterations" validate:"gte=1,lte=10000"`

	// MinImprovement is the relative modularity gain below which passes stop.
	MinImprovement float64 `json:"min_improvement" validate:"gte=0"`
}

func DefaultOptions() Options {
	return Options{
		Resolution:       DefaultResolution,
		MinCommunitySize: DefaultMinCommunitySize,
		MaxLevels:        DefaultMaxLevels,
		MaxIterations:    DefaultMaxIterations,
		MinImprovement:   DefaultMinImprovement,
	}
}

// OptionOverrides carries caller-supplied options. Nil fields fall back to
// the base options passed to Resolve.
type OptionOverrides struct {
	Resolution       *float64 `json:"resolution,omitempty"`
	MinCommunitySize *int     `json:"min_community_size,omitempty"`
	MaxLevels        *int     `json:"max_levels,omitempty"`
	MaxIterations    *int     `json:"max_iterations,omitempty"`
	MinImprovement   *float64 `json:"min_improvement,omitempty"`
}

// Resolve applies the overrides on top of base and validates the result.
func (o OptionOverrides) Resolve(base Options) (Options, error) {
	opts := base
	if o.Resolution != nil {
		opts.Resolution = *o.Resolution
	}
	if o.MinCommunitySize != nil {
		opts.MinCommunitySize = *o.MinCommunitySize
	}
	if o.MaxLevels != nil {
		opts.MaxLevels = *o.MaxLevels
	}
	if o.MaxIterations != nil {
		opts.MaxIterations = *o.MaxIterations
	}
	if o.MinImprovement != nil {
		opts.MinImprovement = *o.MinImprovement
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func Float(v float64) *float64 {
	return &v
}

func Int(v int) *int {
	return &v
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate rejects out-of-range values instead of clamping them. Every
// violation is reported in a single *apperrors.InvalidOptionsError.
func (o Options) Validate() error {
	var violations []apperrors.FieldViolation

	if err := getValidator().Struct(o); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("failed to validate options: %w", err)
		}
		for _, fe := range fieldErrs {
			violations = append(violations, apperrors.FieldViolation{
				Field:  fieldName(fe.Field()),
				Reason: describe(fe),
			})
		}
	}

	if math.IsInf(o.Resolution, 0) || math.IsNaN(o.Resolution) {
		violations = appendUnique(violations, "resolution", "must be a finite number")
	}
	if math.IsInf(o.MinImprovement, 0) || math.IsNaN(o.MinImprovement) {
		violations = appendUnique(violations, "min_improvement", "must be a finite number")
	}

	if len(violations) > 0 {
		return &apperrors.InvalidOptionsError{Violations: violations}
	}
	return nil
}

func appendUnique(violations []apperrors.FieldViolation, field, reason string) []apperrors.FieldViolation {
	for _, v := range violations {
		if v.Field == field {
			return violations
		}
	}
	return append(violations, apperrors.FieldViolation{Field: field, Reason: reason})
}

func fieldName(structField string) string {
	switch structField {
	case "Resolution":
		return "resolution"
	case "MinCommunitySize":
		return "min_community_size"
	case "MaxLevels":
		return "max_levels"
	case "MaxIterations":
		return "max_iterations"
	case "MinImprovement":
		return "min_improvement"
	}
	return structField
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("must be >= %s (got %v)", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be <= %s (got %v)", fe.Param(), fe.Value())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/FarisAlahmad714/chartexam/internal/metrics"
)

// TestType is the only test type this validator accepts.
const TestType = "chart-exam"

// Chart-exam sub-types, each with its own scoring contract.
const (
	SubTypeSwing     = "swing-analysis"
	SubTypeFibonacci = "fibonacci-retracement"
	SubTypeFVG       = "fair-value-gaps"
)

// Expected totalPoints bounds per sub-type.
const (
	swingMinPoints = 2
	swingMaxPoints = 25
	fibExactPoints = 2
	fvgMaxPoints   = 15
)

// fibScoreGranularity is the partial-credit step for fibonacci retracements:
// two legs graded independently, half a point each.
const fibScoreGranularity = 0.5

// Result is a submitted chart-exam score as received from the grading path,
// before it is allowed anywhere near persistence.
type Result struct {
	UserID      string    `json:"user_id"`
	TestType    string    `json:"test_type"`
	SubType     string    `json:"sub_type"`
	AssetSymbol string    `json:"asset_symbol"`
	Score       float64   `json:"score"`
	TotalPoints float64   `json:"total_points"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// Validation is the outcome of an integrity check. Hard errors must block
// persistence; warnings are advisory and the record may still be accepted.
// The two collections are kept separate so a caller cannot mistake an
// advisory flag for a blocking failure.
type Validation struct {
	Valid      bool     `json:"valid"`
	HardErrors []string `json:"hard_errors,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Sanitized  Result   `json:"sanitized"`
}

// Validate checks a submitted result against the universal and per-sub-type
// scoring contracts. It never mutates the input; the sanitized copy has the
// score clamped to [0, totalPoints] and CompletedAt defaulted to now.
// Valid is true exactly when no hard-error rule was violated.
func Validate(r Result) Validation {
	v := Validation{Sanitized: r}

	if r.UserID == "" {
		v.hard("user_id is required")
	}
	if r.TestType != TestType {
		v.hard(fmt.Sprintf("test_type must be %q, got %q", TestType, r.TestType))
	}

	switch r.SubType {
	case SubTypeSwing, SubTypeFibonacci, SubTypeFVG:
	default:
		v.hard(fmt.Sprintf("unknown sub_type %q", r.SubType))
	}

	scoreOK := isFinite(r.Score) && r.Score >= 0
	if !scoreOK {
		v.hard("score must be a finite number >= 0")
	}
	pointsOK := isFinite(r.TotalPoints) && r.TotalPoints > 0
	if !pointsOK {
		v.hard("total_points must be a finite number > 0")
	}
	if scoreOK && pointsOK && r.Score > r.TotalPoints {
		v.hard(fmt.Sprintf("score %g exceeds total_points %g", r.Score, r.TotalPoints))
	}

	if pointsOK {
		switch r.SubType {
		case SubTypeSwing:
			if r.TotalPoints < swingMinPoints {
				v.warn(fmt.Sprintf("total_points %g is unusually low for swing analysis (expected %d-%d)",
					r.TotalPoints, swingMinPoints, swingMaxPoints))
			} else if r.TotalPoints > swingMaxPoints {
				v.warn(fmt.Sprintf("total_points %g is unusually high for swing analysis (expected %d-%d)",
					r.TotalPoints, swingMinPoints, swingMaxPoints))
			}
		case SubTypeFibonacci:
			if r.TotalPoints != fibExactPoints {
				v.hard(fmt.Sprintf("fibonacci retracement is graded out of exactly %d points, got %g",
					fibExactPoints, r.TotalPoints))
			}
			if scoreOK && !isHalfPointMultiple(r.Score) {
				v.hard(fmt.Sprintf("fibonacci score %g is not a multiple of %g", r.Score, fibScoreGranularity))
			}
		case SubTypeFVG:
			if r.TotalPoints > fvgMaxPoints {
				v.warn(fmt.Sprintf("total_points %g is unusually high for fair value gaps (expected 0-%d)",
					r.TotalPoints, fvgMaxPoints))
			}
		}
	}

	v.Valid = len(v.HardErrors) == 0
	v.Sanitized.Score = clampScore(r.Score, r.TotalPoints)
	if v.Sanitized.CompletedAt.IsZero() {
		v.Sanitized.CompletedAt = time.Now()
	}
	return v
}

// Report logs a validation outcome for monitoring and feeds the metrics.
// It never changes the already-computed Valid flag; callers decide whether
// warnings block persistence.
func Report(logger zerolog.Logger, r Result, v Validation) {
	severity := "ok"
	switch {
	case len(v.HardErrors) > 0:
		severity = "hard_error"
		logger.Error().
			Str("user_id", r.UserID).
			Str("sub_type", r.SubType).
			Strs("hard_errors", v.HardErrors).
			Strs("warnings", v.Warnings).
			Msg("Score failed integrity validation")
	case len(v.Warnings) > 0:
		severity = "warning"
		logger.Warn().
			Str("user_id", r.UserID).
			Str("sub_type", r.SubType).
			Strs("warnings", v.Warnings).
			Msg("Score accepted with validation warnings")
	}
	metrics.ScoringValidations.WithLabelValues(r.SubType, severity).Inc()
}

func (v *Validation) hard(msg string) {
	v.HardErrors = append(v.HardErrors, msg)
}

func (v *Validation) warn(msg string) {
	v.Warnings = append(v.Warnings, msg)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// isHalfPointMultiple tolerates float noise from client-side grading.
func isHalfPointMultiple(score float64) bool {
	scaled := score / fibScoreGranularity
	return math.Abs(scaled-math.Round(scaled)) < 1e-9
}

func clampScore(score, totalPoints float64) float64 {
	if !isFinite(score) || score < 0 {
		return 0
	}
	if isFinite(totalPoints) && totalPoints > 0 && score > totalPoints {
		return totalPoints
	}
	return score
}

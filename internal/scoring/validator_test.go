package scoring

import (
	"math"
	"strings"
	"testing"
	"time"
)

func validResult(subType string) Result {
	r := Result{
		UserID:      "user1",
		TestType:    TestType,
		SubType:     subType,
		AssetSymbol: "BTCUSD",
		Score:       1.5,
		TotalPoints: 2,
	}
	switch subType {
	case SubTypeSwing:
		r.Score = 8
		r.TotalPoints = 10
	case SubTypeFVG:
		r.Score = 4
		r.TotalPoints = 6
	}
	return r
}

func TestValidateAccepted(t *testing.T) {
	for _, subType := range []string{SubTypeSwing, SubTypeFibonacci, SubTypeFVG} {
		t.Run(subType, func(t *testing.T) {
			v := Validate(validResult(subType))
			if !v.Valid {
				t.Fatalf("expected valid, got hard errors: %v", v.HardErrors)
			}
			if len(v.Warnings) != 0 {
				t.Errorf("unexpected warnings: %v", v.Warnings)
			}
		})
	}
}

func TestValidateUniversalRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Result)
		errHas string
	}{
		{"missing user", func(r *Result) { r.UserID = "" }, "user_id"},
		{"wrong test type", func(r *Result) { r.TestType = "quiz" }, "test_type"},
		{"unknown sub type", func(r *Result) { r.SubType = "elliott-waves" }, "sub_type"},
		{"negative score", func(r *Result) { r.Score = -1 }, "score"},
		{"NaN score", func(r *Result) { r.Score = math.NaN() }, "score"},
		{"infinite score", func(r *Result) { r.Score = math.Inf(1) }, "score"},
		{"zero total points", func(r *Result) { r.TotalPoints = 0 }, "total_points"},
		{"negative total points", func(r *Result) { r.TotalPoints = -2 }, "total_points"},
		{"score exceeds total", func(r *Result) { r.Score = 11 }, "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validResult(SubTypeSwing)
			tt.mutate(&r)

			v := Validate(r)
			if v.Valid {
				t.Fatal("expected a hard error")
			}
			found := false
			for _, e := range v.HardErrors {
				if strings.Contains(e, tt.errHas) {
					found = true
				}
			}
			if !found {
				t.Errorf("hard errors %v do not mention %q", v.HardErrors, tt.errHas)
			}
		})
	}
}

func TestValidateFibonacciContract(t *testing.T) {
	// Wrong denominator is a hard error, not a warning.
	r := validResult(SubTypeFibonacci)
	r.TotalPoints = 4
	r.Score = 3
	if v := Validate(r); v.Valid {
		t.Error("fibonacci with total_points 4 should be rejected")
	}

	// Partial credit must land on the half-point grid.
	r = validResult(SubTypeFibonacci)
	r.Score = 1.3
	v := Validate(r)
	if v.Valid {
		t.Error("fibonacci score 1.3 should be rejected")
	}

	for _, score := range []float64{0, 0.5, 1, 1.5, 2} {
		r = validResult(SubTypeFibonacci)
		r.Score = score
		if v := Validate(r); !v.Valid {
			t.Errorf("fibonacci score %g should be valid, got %v", score, v.HardErrors)
		}
	}
}

func TestValidateSwingBoundsAreAdvisory(t *testing.T) {
	r := validResult(SubTypeSwing)
	r.Score = 1
	r.TotalPoints = 1
	v := Validate(r)
	if !v.Valid {
		t.Fatalf("out-of-range swing total should only warn, got %v", v.HardErrors)
	}
	if len(v.Warnings) == 0 {
		t.Error("expected a low-total warning")
	}

	r = validResult(SubTypeSwing)
	r.Score = 26
	r.TotalPoints = 30
	v = Validate(r)
	if !v.Valid {
		t.Fatalf("high swing total should only warn, got %v", v.HardErrors)
	}
	if len(v.Warnings) == 0 {
		t.Error("expected a high-total warning")
	}
}

func TestValidateFVGBounds(t *testing.T) {
	r := validResult(SubTypeFVG)
	r.Score = 12
	r.TotalPoints = 20
	v := Validate(r)
	if !v.Valid {
		t.Fatalf("fvg total above 15 should only warn, got %v", v.HardErrors)
	}
	if len(v.Warnings) == 0 {
		t.Error("expected a warning for total_points above 15")
	}

	// Score above total is universally hard regardless of sub-type bounds.
	r = validResult(SubTypeFVG)
	r.Score = 6
	r.TotalPoints = 5
	if v := Validate(r); v.Valid {
		t.Error("score 6/5 should be a hard error")
	}
}

func TestValidateSanitizes(t *testing.T) {
	r := validResult(SubTypeFVG)
	r.Score = 6
	r.TotalPoints = 5
	v := Validate(r)
	if v.Sanitized.Score != 5 {
		t.Errorf("Sanitized.Score = %g, want clamp to 5", v.Sanitized.Score)
	}

	r = validResult(SubTypeSwing)
	r.Score = -3
	v = Validate(r)
	if v.Sanitized.Score != 0 {
		t.Errorf("Sanitized.Score = %g, want clamp to 0", v.Sanitized.Score)
	}

	// CompletedAt defaults to now when unset, stays put otherwise.
	if v.Sanitized.CompletedAt.IsZero() {
		t.Error("Sanitized.CompletedAt should default to now")
	}
	at := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	r = validResult(SubTypeSwing)
	r.CompletedAt = at
	v = Validate(r)
	if !v.Sanitized.CompletedAt.Equal(at) {
		t.Errorf("Sanitized.CompletedAt = %v, want %v preserved", v.Sanitized.CompletedAt, at)
	}
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	r := validResult(SubTypeFVG)
	r.Score = 6
	r.TotalPoints = 5
	Validate(r)
	if r.Score != 6 {
		t.Errorf("input Score mutated to %g", r.Score)
	}
}

// Package threshold turns the heterogeneous threshold shapes returned by
// covenant extraction into a canonical float plus the full step schedule.
package threshold

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/covenant-monitor/internal/model"
)

// Result is the canonical form of a raw threshold. When Malformed is set,
// Value is the 0.0 fallback and Err wraps model.ErrMalformedThreshold; the
// caller keeps the covenant and flags it for review.
type Result struct {
	Value      float64
	Thresholds []model.ThresholdStep
	Malformed  bool
	Err        error
}

// currencyMarkers are stripped before numeric parsing. Longer markers come
// first so "US$" is removed before "$".
var currencyMarkers = []string{"US$", "USD", "EUR", "GBP", "$", "€", "£"}

// magnitudes maps trailing scale words to multipliers, longest first.
var magnitudes = []struct {
	suffix string
	mul    float64
}{
	{"billion", 1e9},
	{"million", 1e6},
	{"thousand", 1e3},
	{"bn", 1e9},
	{"mm", 1e6},
	{"b", 1e9},
	{"m", 1e6},
	{"k", 1e3},
}

// Normalize converts raw into a canonical threshold. raw may be a number, a
// string, an object with a "value" key (other keys become conditions) or an
// ordered list of either. Normalize never panics and never returns a
// non-finite value.
func Normalize(raw any) Result {
	switch v := raw.(type) {
	case []any:
		return normalizeSchedule(v)
	case []map[string]any:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return normalizeSchedule(items)
	case map[string]any:
		return normalizeSchedule([]any{v})
	default:
		step, err := normalizeStep(raw)
		return finish([]model.ThresholdStep{step}, err)
	}
}

func normalizeSchedule(items []any) Result {
	if len(items) == 0 {
		return finish([]model.ThresholdStep{{}}, eris.Wrap(model.ErrMalformedThreshold, "empty threshold schedule"))
	}

	steps := make([]model.ThresholdStep, 0, len(items))
	var firstErr error
	for _, item := range items {
		step, err := normalizeStep(item)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		steps = append(steps, step)
	}
	return finish(steps, firstErr)
}

func finish(steps []model.ThresholdStep, err error) Result {
	r := Result{Value: steps[0].Value, Thresholds: steps}
	if err != nil {
		r.Malformed = true
		r.Err = err
	}
	return r
}

// normalizeStep handles one schedule entry: either a bare value or an
// object carrying "value" plus arbitrary conditions.
func normalizeStep(item any) (model.ThresholdStep, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		val, err := Value(item)
		return model.ThresholdStep{Value: val, Raw: item}, err
	}

	var conditions map[string]any
	for k, v := range obj {
		if k == "value" {
			continue
		}
		if conditions == nil {
			conditions = make(map[string]any, len(obj))
		}
		conditions[k] = v
	}

	raw, present := obj["value"]
	if !present {
		return model.ThresholdStep{Conditions: conditions}, eris.Wrap(model.ErrMalformedThreshold, "threshold object has no value")
	}
	val, err := Value(raw)
	return model.ThresholdStep{Value: val, Raw: raw, Conditions: conditions}, err
}

// Value normalizes a single scalar threshold. On failure it returns 0 and an
// error wrapping model.ErrMalformedThreshold.
func Value(raw any) (float64, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, eris.Wrapf(model.ErrMalformedThreshold, "threshold %q", v.String())
		}
		f = parsed
	case string:
		return parseString(v)
	case nil:
		return 0, eris.Wrap(model.ErrMalformedThreshold, "threshold is null")
	default:
		return 0, eris.Wrapf(model.ErrMalformedThreshold, "unsupported threshold type %T", raw)
	}
	if !isFinite(f) {
		return 0, eris.Wrapf(model.ErrMalformedThreshold, "threshold %v is not finite", f)
	}
	return f, nil
}

func parseString(s string) (float64, error) {
	orig := s
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, eris.Wrap(model.ErrMalformedThreshold, "threshold is empty")
	}

	// Ratio syntax "3.50:1.00".
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) != 2 {
			return 0, malformed(orig)
		}
		num, errN := parsePlain(parts[0])
		den, errD := parsePlain(parts[1])
		if errN != nil || errD != nil || den == 0 {
			return 0, malformed(orig)
		}
		return checked(num/den, orig)
	}

	// Currency markers and thousands separators.
	hadCurrency := false
	for _, m := range currencyMarkers {
		if strings.Contains(s, m) {
			hadCurrency = true
			s = strings.ReplaceAll(s, m, "")
		}
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if strings.Contains(s, "%") {
		f, err := parsePlain(strings.ReplaceAll(s, "%", ""))
		if err != nil {
			return 0, malformed(orig)
		}
		return checked(f/100, orig)
	}

	if f, err := parsePlain(s); err == nil {
		return checked(f, orig)
	}

	lower := strings.ToLower(s)
	for _, m := range magnitudes {
		if !strings.HasSuffix(lower, m.suffix) {
			continue
		}
		f, err := parsePlain(lower[:len(lower)-len(m.suffix)])
		if err != nil {
			break
		}
		return checked(f*m.mul, orig)
	}

	// Multiples written as "1.2x".
	if !hadCurrency && strings.HasSuffix(lower, "x") {
		if f, err := parsePlain(lower[:len(lower)-1]); err == nil {
			return checked(f, orig)
		}
	}
	return 0, malformed(orig)
}

func parsePlain(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func checked(f float64, orig string) (float64, error) {
	if !isFinite(f) {
		return 0, malformed(orig)
	}
	return f, nil
}

func malformed(s string) error {
	return eris.Wrapf(model.ErrMalformedThreshold, "threshold %q", s)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

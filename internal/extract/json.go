package extract

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/covenant-monitor/pkg/anthropic"
)

// parseCandidates accepts a bare array of candidates or an object holding
// one under "covenants".
func parseCandidates(text string) ([]RawCandidate, error) {
	cleaned := anthropic.CleanJSON(text)
	if cleaned == "" {
		return nil, eris.New("extract: empty response")
	}

	dec := func(dst any) error {
		d := json.NewDecoder(strings.NewReader(cleaned))
		d.UseNumber()
		return d.Decode(dst)
	}

	if cleaned[0] == '[' {
		var out []RawCandidate
		if err := dec(&out); err != nil {
			return nil, eris.Wrap(err, "extract: parse candidate array")
		}
		return out, nil
	}

	var wrapped struct {
		Covenants []RawCandidate `json:"covenants"`
	}
	if err := dec(&wrapped); err != nil {
		return nil, eris.Wrap(err, "extract: parse candidate object")
	}
	if wrapped.Covenants == nil {
		return nil, eris.New("extract: response has no covenants field")
	}
	return wrapped.Covenants, nil
}

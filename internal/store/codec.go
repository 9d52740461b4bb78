package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/covenant-monitor/internal/model"
)

// covenantJSON holds the JSON-encoded columns of a covenant row.
type covenantJSON struct {
	thresholds []byte
	metrics    []byte
}

func encodeCovenant(c *model.Covenant) (covenantJSON, error) {
	steps := c.Thresholds
	if steps == nil {
		steps = []model.ThresholdStep{}
	}
	th, err := json.Marshal(steps)
	if err != nil {
		return covenantJSON{}, eris.Wrapf(err, "store: marshal thresholds for covenant %s", c.ID)
	}
	metrics := c.FormulaMetrics
	if metrics == nil {
		metrics = []string{}
	}
	m, err := json.Marshal(metrics)
	if err != nil {
		return covenantJSON{}, eris.Wrapf(err, "store: marshal formula metrics for covenant %s", c.ID)
	}
	return covenantJSON{thresholds: th, metrics: m}, nil
}

func decodeCovenant(c *model.Covenant, enc covenantJSON) error {
	if len(enc.thresholds) > 0 {
		if err := json.Unmarshal(enc.thresholds, &c.Thresholds); err != nil {
			return eris.Wrapf(err, "store: unmarshal thresholds for covenant %s", c.ID)
		}
	}
	if len(enc.metrics) > 0 {
		if err := json.Unmarshal(enc.metrics, &c.FormulaMetrics); err != nil {
			return eris.Wrapf(err, "store: unmarshal formula metrics for covenant %s", c.ID)
		}
	}
	if len(c.FormulaMetrics) == 0 {
		c.FormulaMetrics = nil
	}
	return nil
}

func encodeDetails(a *model.Alert) ([]byte, error) {
	b, err := json.Marshal(a.Details)
	if err != nil {
		return nil, eris.Wrapf(err, "store: marshal details for alert %s", a.ID)
	}
	return b, nil
}

func decodeDetails(a *model.Alert, raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &a.Details); err != nil {
		return eris.Wrapf(err, "store: unmarshal details for alert %s", a.ID)
	}
	return nil
}

func metadataOrEmpty(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}

// optionalString maps "" to SQL NULL.
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func notFound(entity, id string) error {
	return eris.Wrapf(model.ErrNotFound, "store: %s %s", entity, id)
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}

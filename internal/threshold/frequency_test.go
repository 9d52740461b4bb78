package threshold

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/covenant-monitor/internal/model"
)

func TestNormalizeFrequency(t *testing.T) {
	tests := []struct {
		in   string
		want model.Frequency
	}{
		{"Quarterly", model.FrequencyQuarterly},
		{"tested as of the last day of each fiscal quarter", model.FrequencyQuarterly},
		{"monthly", model.FrequencyMonthly},
		{"each calendar month", model.FrequencyMonthly},
		{"per fiscal year", model.FrequencyAnnually},
		{"Annually", model.FrequencyAnnually},
		{"at all times", model.FrequencyContinuous},
		{"continuous", model.FrequencyContinuous},
		{"not specified", model.FrequencyUnspecified},
		{"", model.FrequencyUnspecified},
		// quarter outranks year when both appear.
		{"quarterly, annualized over the fiscal year", model.FrequencyQuarterly},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFrequency(tt.in))
		})
	}
}

package threshold

import (
	"strings"

	"github.com/sells-group/covenant-monitor/internal/model"
)

// frequencyRules are checked in order; the first match wins.
var frequencyRules = []struct {
	keywords []string
	freq     model.Frequency
}{
	{[]string{"quarter"}, model.FrequencyQuarterly},
	{[]string{"month"}, model.FrequencyMonthly},
	{[]string{"year", "annual"}, model.FrequencyAnnually},
	{[]string{"all times", "continuous"}, model.FrequencyContinuous},
}

// NormalizeFrequency maps a free-text measurement phrase to the closed enum.
// Canonical values pass through unchanged.
func NormalizeFrequency(text string) model.Frequency {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, rule := range frequencyRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.freq
			}
		}
	}
	return model.FrequencyUnspecified
}

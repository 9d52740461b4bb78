package extract

import (
	"regexp"

	"github.com/sells-group/covenant-monitor/internal/model"
)

const datePattern = `(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`

var datePatterns = []struct {
	kind string
	re   *regexp.Regexp
}{
	{"review_date", regexp.MustCompile(`(?i)(?:review|reporting|compliance)\s*date.*?` + datePattern)},
	{"effective_date", regexp.MustCompile(`(?i)(?:effective|closing)\s*date.*?` + datePattern)},
	{"termination_date", regexp.MustCompile(`(?i)(?:termination|maturity)\s*date.*?` + datePattern)},
}

// FindDates scans text for review, effective and termination dates. Matches
// do not cross line breaks. Results are grouped by kind in document order.
func FindDates(text string) []model.DateMention {
	var out []model.DateMention
	for _, p := range datePatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			out = append(out, model.DateMention{
				Type:    p.kind,
				Date:    m[1],
				Context: m[0],
			})
		}
	}
	return out
}

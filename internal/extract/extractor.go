package extract

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/covenant-monitor/internal/formula"
	"github.com/sells-group/covenant-monitor/internal/model"
	"github.com/sells-group/covenant-monitor/internal/threshold"
)

// DefaultTimeout bounds a single extraction service call.
const DefaultTimeout = 60 * time.Second

const unknownDocumentType = "unknown"

// Result is the outcome of Extract. Err wraps model.ErrExtractionFailed when
// the service failed; Drafts is empty in that case but Dates is still set.
type Result struct {
	Drafts []model.CovenantDraft
	Dates  []model.DateMention
	Err    error
}

// Extractor normalizes service candidates into covenant drafts.
type Extractor struct {
	svc     TextExtractionService
	timeout time.Duration
	log     *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// New creates an Extractor around svc.
func New(svc TextExtractionService, opts ...Option) *Extractor {
	e := &Extractor{
		svc:     svc,
		timeout: DefaultTimeout,
		log:     zap.L().With(zap.String("component", "extractor")),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type serviceResult struct {
	candidates []RawCandidate
	err        error
}

// Extract asks the service for candidates and normalizes each one. Order is
// preserved and malformed candidates are kept with NeedsReview set.
func (e *Extractor) Extract(ctx context.Context, text string) Result {
	res := Result{Dates: FindDates(text)}

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// The service may not honour ctx; the select enforces the deadline anyway.
	done := make(chan serviceResult, 1)
	go func() {
		c, err := e.svc.ExtractCovenants(cctx, text)
		done <- serviceResult{candidates: c, err: err}
	}()

	var out serviceResult
	select {
	case out = <-done:
	case <-cctx.Done():
		out.err = cctx.Err()
	}

	if out.err != nil {
		if cctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			res.Err = eris.Wrapf(model.ErrExtractionFailed, "extract: timed out after %s", e.timeout)
		} else {
			res.Err = eris.Wrapf(model.ErrExtractionFailed, "extract: %v", out.err)
		}
		e.log.Warn("covenant extraction failed", zap.Error(out.err))
		return res
	}

	res.Drafts = make([]model.CovenantDraft, 0, len(out.candidates))
	for _, c := range out.candidates {
		res.Drafts = append(res.Drafts, e.toDraft(c))
	}
	return res
}

// Describe returns best-effort document metadata. It never fails: services
// without the DocumentDescriber capability, and failed calls, yield an
// unknown type and no parties.
func (e *Extractor) Describe(ctx context.Context, text string) DocumentDescription {
	desc := DocumentDescription{DocumentType: unknownDocumentType}

	d, ok := e.svc.(DocumentDescriber)
	if !ok {
		return desc
	}

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	got, err := d.DescribeDocument(cctx, text)
	if err != nil || got == nil {
		e.log.Debug("document description unavailable", zap.Error(err))
		return desc
	}

	if t := strings.ToLower(strings.TrimSpace(got.DocumentType)); t != "" {
		desc.DocumentType = t
	}
	for _, p := range got.Parties {
		if p = strings.TrimSpace(p); p != "" {
			desc.Parties = append(desc.Parties, p)
		}
	}
	return desc
}

func (e *Extractor) toDraft(c RawCandidate) model.CovenantDraft {
	norm := threshold.Normalize(c.Threshold)
	typ := covenantType(c)

	d := model.CovenantDraft{
		Name:                 covenantName(c.Name, typ),
		Type:                 typ,
		Description:          strings.TrimSpace(c.Description),
		ThresholdValue:       norm.Value,
		Thresholds:           norm.Thresholds,
		Directionality:       directionality(c),
		MeasurementFrequency: threshold.NormalizeFrequency(c.Frequency),
	}

	if norm.Malformed {
		d.NeedsReview = true
		if norm.Err != nil {
			d.ReviewReason = norm.Err.Error()
		}
	}

	if src := strings.TrimSpace(c.Formula); src != "" {
		metrics, err := formula.Validate(src)
		if err != nil {
			e.log.Warn("dropping unparseable covenant formula",
				zap.String("covenant", d.Name),
				zap.String("formula", src),
				zap.Error(err),
			)
		} else {
			d.Formula = src
			d.FormulaMetrics = metrics
		}
	}

	return d
}

// higherIsBetterKeywords mark minimum-style covenants. Phrases such as
// "at least" or "minimum" also appear in testing cadence wording, so they
// are not used.
var higherIsBetterKeywords = []string{
	"coverage",
	"net worth",
}

func directionality(c RawCandidate) model.Directionality {
	if d, ok := model.ParseDirectionality(c.Directionality); ok {
		return d
	}
	return InferDirectionality(c.Name, c.Type, c.Description)
}

// InferDirectionality applies keyword rules to free text. Anything that does
// not mention coverage or net worth is treated as a maximum.
func InferDirectionality(texts ...string) model.Directionality {
	joined := strings.ToLower(strings.ReplaceAll(strings.Join(texts, " "), "_", " "))
	for _, kw := range higherIsBetterKeywords {
		if strings.Contains(joined, kw) {
			return model.HigherIsBetter
		}
	}
	return model.LowerIsBetter
}

func covenantType(c RawCandidate) string {
	if t := snakeCase(c.Type); t != "" {
		return t
	}
	if t := snakeCase(c.Name); t != "" {
		return t
	}
	return "unspecified_covenant"
}

func covenantName(name, typ string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return cases.Title(language.English).String(strings.ReplaceAll(typ, "_", " "))
}

// snakeCase lower-cases s and joins runs of letters and digits with "_".
func snakeCase(s string) string {
	var sb strings.Builder
	sep := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if sep && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			sep = false
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sep = true
	}
	return sb.String()
}

// Package formula evaluates covenant calculation formulas. The grammar is
// deliberately tiny: numbers, metric names, + - * /, unary minus and
// parentheses. There are no function calls, attribute lookups or any other
// way to reach host state; the only bindings are the metric values passed
// to Eval.
package formula

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/covenant-monitor/internal/model"
)

const (
	maxSourceLen = 1024
	maxDepth     = 64
)

// Expr is a parsed formula.
type Expr struct {
	root    node
	metrics []string
}

// Parse compiles src into an evaluable tree. Errors wrap model.ErrFormulaEval.
func Parse(src string) (*Expr, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, eris.Wrap(model.ErrFormulaEval, "empty formula")
	}
	if len(src) > maxSourceLen {
		return nil, eris.Wrapf(model.ErrFormulaEval, "formula longer than %d bytes", maxSourceLen)
	}

	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, eris.Wrapf(model.ErrFormulaEval, "unexpected %q at %d", tok.text, tok.pos)
	}

	seen := make(map[string]bool)
	collectMetrics(root, seen)
	metrics := make([]string, 0, len(seen))
	for name := range seen {
		metrics = append(metrics, name)
	}
	sort.Strings(metrics)

	return &Expr{root: root, metrics: metrics}, nil
}

// Metrics returns the sorted, de-duplicated metric names the formula reads.
func (e *Expr) Metrics() []string {
	out := make([]string, len(e.metrics))
	copy(out, e.metrics)
	return out
}

// String renders the formula in canonical fully-parenthesized form.
func (e *Expr) String() string {
	return e.root.String()
}

// Eval computes the formula with vars as the only bindings. A missing
// metric, a division by zero or a non-finite result is an error wrapping
// model.ErrFormulaEval.
func (e *Expr) Eval(vars map[string]float64) (float64, error) {
	v, err := e.root.eval(vars)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, eris.Wrap(model.ErrFormulaEval, "result is not finite")
	}
	return v, nil
}

// Validate reports whether src parses, returning its metric names.
func Validate(src string) ([]string, error) {
	e, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return e.Metrics(), nil
}

type node interface {
	eval(vars map[string]float64) (float64, error)
	String() string
}

type numberNode struct{ v float64 }

func (n numberNode) eval(map[string]float64) (float64, error) { return n.v, nil }
func (n numberNode) String() string                           { return strconv.FormatFloat(n.v, 'g', -1, 64) }

type metricNode struct{ name string }

func (n metricNode) eval(vars map[string]float64) (float64, error) {
	v, ok := vars[n.name]
	if !ok {
		return 0, eris.Wrapf(model.ErrFormulaEval, "unbound metric %q", n.name)
	}
	return v, nil
}
func (n metricNode) String() string { return n.name }

type negNode struct{ x node }

func (n negNode) eval(vars map[string]float64) (float64, error) {
	v, err := n.x.eval(vars)
	return -v, err
}
func (n negNode) String() string { return "(-" + n.x.String() + ")" }

type binaryNode struct {
	op   tokenKind
	l, r node
}

func (n binaryNode) eval(vars map[string]float64) (float64, error) {
	l, err := n.l.eval(vars)
	if err != nil {
		return 0, err
	}
	r, err := n.r.eval(vars)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case tokPlus:
		return l + r, nil
	case tokMinus:
		return l - r, nil
	case tokStar:
		return l * r, nil
	case tokSlash:
		if r == 0 {
			return 0, eris.Wrapf(model.ErrFormulaEval, "division by zero in %s", n.String())
		}
		return l / r, nil
	default:
		return 0, eris.Wrap(model.ErrFormulaEval, "unknown operator")
	}
}

func (n binaryNode) String() string {
	var op string
	switch n.op {
	case tokPlus:
		op = " + "
	case tokMinus:
		op = " - "
	case tokStar:
		op = " * "
	case tokSlash:
		op = " / "
	}
	return "(" + n.l.String() + op + n.r.String() + ")"
}

func collectMetrics(n node, seen map[string]bool) {
	switch v := n.(type) {
	case metricNode:
		seen[v.name] = true
	case negNode:
		collectMetrics(v.x, seen)
	case binaryNode:
		collectMetrics(v.l, seen)
		collectMetrics(v.r, seen)
	}
}

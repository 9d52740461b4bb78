package formula

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/covenant-monitor/internal/model"
)

func TestParseAndEval(t *testing.T) {
	vars := map[string]float64{
		"total_debt":       350,
		"ebitda":           100,
		"interest_expense": 25,
		"cash":             50,
		"fy.capex":         12,
	}
	tests := []struct {
		src  string
		want float64
	}{
		{"total_debt / ebitda", 3.5},
		{"(total_debt - cash) / ebitda", 3.0},
		{"ebitda / interest_expense", 4.0},
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"-cash + 60", 10},
		{"--2", 2},
		{"+4", 4},
		{"10 / 4 / 5", 0.5},
		{"10 - 4 - 3", 3},
		{"fy.capex × 2", 24},
		{"ebitda ÷ interest_expense − 1", 3},
		{"1e6 / 1E3", 1000},
		{"2.5e-1 * 4", 1},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := Parse(tt.src)
			require.NoError(t, err)
			got, err := e.Eval(vars)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestMetrics(t *testing.T) {
	e, err := Parse("(total_debt - cash) / ebitda + cash * 0")
	require.NoError(t, err)
	assert.Equal(t, []string{"cash", "ebitda", "total_debt"}, e.Metrics())

	// Callers cannot mutate the cached list.
	m := e.Metrics()
	m[0] = "mutated"
	assert.Equal(t, "cash", e.Metrics()[0])
}

func TestParse_Rejects(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"__import__('os').system('ls')",
		"open('x')",
		"a ** 2",
		"a; b",
		"a = 1",
		"a[0]",
		"'text'",
		"(a + b",
		"a + b)",
		"a +",
		"* a",
		"1..2",
		"a b",
		"lambda: 1",
		strings.Repeat("(", 200) + "1" + strings.Repeat(")", 200),
		strings.Repeat("a+", 600) + "a",
	}
	for _, src := range inputs {
		_, err := Parse(src)
		require.Error(t, err, "input %q", src)
		assert.True(t, errors.Is(err, model.ErrFormulaEval), "input %q", src)
	}
}

func TestEval_Errors(t *testing.T) {
	e, err := Parse("debt / ebitda")
	require.NoError(t, err)

	_, err = e.Eval(map[string]float64{"debt": 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrFormulaEval))
	assert.Contains(t, err.Error(), "ebitda")

	_, err = e.Eval(map[string]float64{"debt": 1, "ebitda": 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestEval_NonFinite(t *testing.T) {
	e, err := Parse("a * b")
	require.NoError(t, err)
	_, err = e.Eval(map[string]float64{"a": 1e308, "b": 1e308})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrFormulaEval))
}

func TestString(t *testing.T) {
	e, err := Parse("a - b * -c")
	require.NoError(t, err)
	assert.Equal(t, "(a - (b * (-c)))", e.String())
}

func TestValidate(t *testing.T) {
	names, err := Validate("net_debt / ebitda")
	require.NoError(t, err)
	assert.Equal(t, []string{"ebitda", "net_debt"}, names)

	_, err = Validate("exec(1)")
	assert.Error(t, err)
}

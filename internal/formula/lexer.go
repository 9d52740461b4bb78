package formula

import (
	"strconv"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/sells-group/covenant-monitor/internal/model"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// lex splits src into tokens. Anything outside the grammar is rejected here,
// so the parser never sees it.
func lex(src string) ([]token, error) {
	runes := []rune(src)
	var toks []token
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '+':
			toks = append(toks, token{kind: tokPlus, text: "+", pos: i})
			i++
		case r == '-' || r == '−':
			toks = append(toks, token{kind: tokMinus, text: "-", pos: i})
			i++
		case r == '*' || r == '×':
			toks = append(toks, token{kind: tokStar, text: "*", pos: i})
			i++
		case r == '/' || r == '÷':
			toks = append(toks, token{kind: tokSlash, text: "/", pos: i})
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			// Optional exponent: 1e6, 2.5E-3.
			if i < len(runes) && (runes[i] == 'e' || runes[i] == 'E') {
				j := i + 1
				if j < len(runes) && (runes[j] == '+' || runes[j] == '-') {
					j++
				}
				if j < len(runes) && unicode.IsDigit(runes[j]) {
					i = j
					for i < len(runes) && unicode.IsDigit(runes[i]) {
						i++
					}
				}
			}
			text := string(runes[start:i])
			n, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, eris.Wrapf(model.ErrFormulaEval, "bad number %q at %d", text, start)
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: n, pos: start})
		case isIdentStart(r):
			start := i
			for i < len(runes) && isIdentPart(runes[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: string(runes[start:i]), pos: start})
		default:
			return nil, eris.Wrapf(model.ErrFormulaEval, "unexpected character %q at %d", r, i)
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(runes)})
	return toks, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

package formula

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/covenant-monitor/internal/model"
)

// parser is a recursive-descent parser over:
//
//	expr   := term (('+' | '-') term)*
//	term   := unary (('*' | '/') unary)*
//	unary  := '-' unary | '+' unary | primary
//	primary := number | metric | '(' expr ')'
type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseExpr(depth int) (node, error) {
	if depth > maxDepth {
		return nil, eris.Wrap(model.ErrFormulaEval, "formula nested too deeply")
	}
	left, err := p.parseTerm(depth)
	if err != nil {
		return nil, err
	}
	for {
		k := p.peek().kind
		if k != tokPlus && k != tokMinus {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm(depth)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: k, l: left, r: right}
	}
}

func (p *parser) parseTerm(depth int) (node, error) {
	left, err := p.parseUnary(depth)
	if err != nil {
		return nil, err
	}
	for {
		k := p.peek().kind
		if k != tokStar && k != tokSlash {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary(depth)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: k, l: left, r: right}
	}
}

func (p *parser) parseUnary(depth int) (node, error) {
	if depth > maxDepth {
		return nil, eris.Wrap(model.ErrFormulaEval, "formula nested too deeply")
	}
	switch p.peek().kind {
	case tokMinus:
		p.next()
		x, err := p.parseUnary(depth + 1)
		if err != nil {
			return nil, err
		}
		return negNode{x: x}, nil
	case tokPlus:
		p.next()
		return p.parseUnary(depth + 1)
	}
	return p.parsePrimary(depth)
}

func (p *parser) parsePrimary(depth int) (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return numberNode{v: tok.num}, nil
	case tokIdent:
		return metricNode{name: tok.text}, nil
	case tokLParen:
		inner, err := p.parseExpr(depth + 1)
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, eris.Wrapf(model.ErrFormulaEval, "expected ) at %d", closing.pos)
		}
		return inner, nil
	case tokEOF:
		return nil, eris.Wrap(model.ErrFormulaEval, "unexpected end of formula")
	default:
		return nil, eris.Wrapf(model.ErrFormulaEval, "unexpected %q at %d", tok.text, tok.pos)
	}
}

package usecase

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// evaluateExpression evaluates a restricted arithmetic expression:
// numbers, + - * / % ( ), and the named math functions. Anything else
// is rejected before evaluation; no general code is ever run.
func evaluateExpression(expression string) (string, error) {
	tokens, err := tokenizeExpression(expression)
	if err != nil {
		return "", err
	}
	parser := &exprParser{tokens: tokens}
	value, err := parser.parseExpr()
	if err != nil {
		return "", err
	}
	if parser.pos != len(parser.tokens) {
		return "", fmt.Errorf("unexpected token %q", parser.tokens[parser.pos].text)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "", fmt.Errorf("expression is not a finite number")
	}
	return strconv.FormatFloat(value, 'f', -1, 64), nil
}

var mathFunctions = map[string]struct {
	arity int
	apply func(args []float64) float64
}{
	"sin":   {1, func(a []float64) float64 { return math.Sin(a[0]) }},
	"cos":   {1, func(a []float64) float64 { return math.Cos(a[0]) }},
	"tan":   {1, func(a []float64) float64 { return math.Tan(a[0]) }},
	"sqrt":  {1, func(a []float64) float64 { return math.Sqrt(a[0]) }},
	"abs":   {1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"log":   {1, func(a []float64) float64 { return math.Log(a[0]) }},
	"exp":   {1, func(a []float64) float64 { return math.Exp(a[0]) }},
	"floor": {1, func(a []float64) float64 { return math.Floor(a[0]) }},
	"ceil":  {1, func(a []float64) float64 { return math.Ceil(a[0]) }},
	"round": {1, func(a []float64) float64 { return math.Round(a[0]) }},
	"pow":   {2, func(a []float64) float64 { return math.Pow(a[0], a[1]) }},
}

type exprToken struct {
	kind rune // 'n' number, 'f' function, or the operator/paren itself
	text string
}

func tokenizeExpression(expression string) ([]exprToken, error) {
	out := make([]exprToken, 0, len(expression))
	runes := []rune(expression)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r >= '0' && r <= '9' || r == '.':
			start := i
			for i < len(runes) && (runes[i] >= '0' && runes[i] <= '9' || runes[i] == '.') {
				i++
			}
			out = append(out, exprToken{kind: 'n', text: string(runes[start:i])})
		case unicode.IsLetter(r):
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || runes[i] == '.') {
				i++
			}
			name := strings.ToLower(strings.TrimPrefix(string(runes[start:i]), "Math."))
			name = strings.TrimPrefix(name, "math.")
			if _, ok := mathFunctions[name]; !ok {
				return nil, fmt.Errorf("invalid characters in expression: %q", string(runes[start:i]))
			}
			out = append(out, exprToken{kind: 'f', text: name})
		case strings.ContainsRune("+-*/%(),", r):
			out = append(out, exprToken{kind: r, text: string(r)})
			i++
		default:
			return nil, fmt.Errorf("invalid characters in expression: %q", string(r))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	return out, nil
}

type exprParser struct {
	tokens []exprToken
	pos    int
}

func (p *exprParser) peek() (exprToken, bool) {
	if p.pos >= len(p.tokens) {
		return exprToken{}, false
	}
	return p.tokens[p.pos], true
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		tok, ok := p.peek()
		if !ok || (tok.kind != '+' && tok.kind != '-') {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if tok.kind == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		tok, ok := p.peek()
		if !ok || (tok.kind != '*' && tok.kind != '/' && tok.kind != '%') {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		switch tok.kind {
		case '*':
			left *= right
		case '/':
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		case '%':
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left = math.Mod(left, right)
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	tok, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	if tok.kind == '-' {
		p.pos++
		value, err := p.parseUnary()
		return -value, err
	}
	if tok.kind == '+' {
		p.pos++
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (float64, error) {
	tok, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	switch tok.kind {
	case 'n':
		p.pos++
		value, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", tok.text)
		}
		return value, nil
	case 'f':
		p.pos++
		return p.parseCall(tok.text)
	case '(':
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if err := p.expect(')'); err != nil {
			return 0, err
		}
		return value, nil
	default:
		return 0, fmt.Errorf("unexpected token %q", tok.text)
	}
}

func (p *exprParser) parseCall(name string) (float64, error) {
	fn := mathFunctions[name]
	if err := p.expect('('); err != nil {
		return 0, err
	}
	args := make([]float64, 0, fn.arity)
	for {
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		args = append(args, value)
		tok, ok := p.peek()
		if !ok {
			return 0, fmt.Errorf("unterminated call to %s", name)
		}
		if tok.kind == ',' {
			p.pos++
			continue
		}
		break
	}
	if err := p.expect(')'); err != nil {
		return 0, err
	}
	if len(args) != fn.arity {
		return 0, fmt.Errorf("%s expects %d argument(s), got %d", name, fn.arity, len(args))
	}
	return fn.apply(args), nil
}

func (p *exprParser) expect(kind rune) error {
	tok, ok := p.peek()
	if !ok || tok.kind != kind {
		return fmt.Errorf("expected %q", string(kind))
	}
	p.pos++
	return nil
}

package deck

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Params holds the accumulated .param table. Names are stored
// lowercase; lookups are case-insensitive like the rest of SPICE.
type Params map[string]float64

// Expression grammar for .param values and {…} braces: numbers with SI
// suffixes, parameter references, unary sign, + - * / and parentheses.

type expression struct {
	Left *exprTerm  `parser:"@@"`
	Tail []*exprOp  `parser:"@@*"`
}

type exprOp struct {
	Op   string    `parser:"@('+' | '-')"`
	Term *exprTerm `parser:"@@"`
}

type exprTerm struct {
	Left *exprFactor `parser:"@@"`
	Tail []*termOp   `parser:"@@*"`
}

type termOp struct {
	Op     string      `parser:"@('*' | '/')"`
	Factor *exprFactor `parser:"@@"`
}

type exprFactor struct {
	Sign   string      `parser:"@('-' | '+')?"`
	Number *string     `parser:"( @Number"`
	Ident  *string     `parser:"  | @Ident"`
	Sub    *expression `parser:"  | '(' @@ ')' )"`
}

var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Number", Pattern: `(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?[a-zA-Z]*`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[-+*/()]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var exprParser = participle.MustBuild[expression](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// EvalExpr evaluates an expression against the parameter table.
func EvalExpr(src string, params Params) (float64, error) {
	ast, err := exprParser.ParseString("", src)
	if err != nil {
		return 0, fmt.Errorf("expression %q: %v", src, err)
	}
	return evalExpression(ast, params)
}

func evalExpression(e *expression, params Params) (float64, error) {
	v, err := evalTerm(e.Left, params)
	if err != nil {
		return 0, err
	}
	for _, op := range e.Tail {
		rv, err := evalTerm(op.Term, params)
		if err != nil {
			return 0, err
		}
		switch op.Op {
		case "+":
			v += rv
		case "-":
			v -= rv
		}
	}
	return v, nil
}

func evalTerm(t *exprTerm, params Params) (float64, error) {
	v, err := evalFactor(t.Left, params)
	if err != nil {
		return 0, err
	}
	for _, op := range t.Tail {
		rv, err := evalFactor(op.Factor, params)
		if err != nil {
			return 0, err
		}
		switch op.Op {
		case "*":
			v *= rv
		case "/":
			if rv == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			v /= rv
		}
	}
	return v, nil
}

func evalFactor(f *exprFactor, params Params) (float64, error) {
	var v float64
	var err error

	switch {
	case f.Number != nil:
		v, err = ParseValue(*f.Number)
	case f.Ident != nil:
		name := strings.ToLower(*f.Ident)
		var ok bool
		v, ok = params[name]
		if !ok {
			return 0, fmt.Errorf("undefined parameter %q", *f.Ident)
		}
	case f.Sub != nil:
		v, err = evalExpression(f.Sub, params)
	}
	if err != nil {
		return 0, err
	}

	if f.Sign == "-" {
		v = -v
	}
	return v, nil
}

// resolveValue evaluates a {…} brace against the parameter table and
// parses anything else as a plain value token.
func resolveValue(tok string, params Params) (float64, error) {
	if strings.HasPrefix(tok, "{") && strings.HasSuffix(tok, "}") {
		return EvalExpr(tok[1:len(tok)-1], params)
	}
	return ParseValue(tok)
}

var paramAssignRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(\{[^}]*\}|\S+)`)

// parseParamCard handles the body of a .param card: one or more
// name=value assignments, values may be braced expressions referencing
// earlier parameters.
func parseParamCard(rest string, params Params) error {
	matches := paramAssignRe.FindAllStringSubmatch(rest, -1)
	if len(matches) == 0 {
		return fmt.Errorf("no assignments in .param card")
	}

	for _, m := range matches {
		v, err := resolveValue(m[2], params)
		if err != nil {
			return fmt.Errorf("parameter %s: %v", m[1], err)
		}
		params[strings.ToLower(m[1])] = v
	}
	return nil
}

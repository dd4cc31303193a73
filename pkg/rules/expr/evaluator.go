package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formstate/pkg/rules"
)

// Evaluator is a small, dependency-free rule evaluator.
//
// Supported syntax:
// - truthiness: `acceptTerms`
// - comparisons: `password == confirmPassword`, `age >= 18`, `plan != "free"`
// - composition: `a && (b || !c)`
//
// Identifiers on either side of a comparison read from rules.Context.Values
// (with dot-path traversal) or rules.Context.Extras (via the `extras.`
// prefix). Missing identifiers resolve to null.
type Evaluator struct{}

func New() *Evaluator { return &Evaluator{} }

// Eval implements rules.Evaluator.
func (e *Evaluator) Eval(_ string, rule string, ctx rules.Context) (bool, error) {
	program, err := Compile(rule)
	if err != nil {
		return false, err
	}
	return program.Eval(ctx)
}

// Program is a parsed rule, reusable across evaluations.
type Program struct {
	root exprNode
}

// Compile parses rule. An empty rule compiles to a program that always
// holds.
func Compile(rule string) (Program, error) {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return Program{}, nil
	}
	tokens, err := tokenize(trimmed)
	if err != nil {
		return Program{}, err
	}
	if len(tokens) == 0 {
		return Program{}, nil
	}
	root, err := parseExpression(tokens)
	if err != nil {
		return Program{}, err
	}
	return Program{root: root}, nil
}

// Eval runs the program against ctx.
func (p Program) Eval(ctx rules.Context) (bool, error) {
	if p.root == nil {
		return true, nil
	}
	return p.root.eval(ctx)
}

type tokenKind int

const (
	tokenIdentifier tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenEq
	tokenNeq
	tokenLt
	tokenLte
	tokenGt
	tokenGte
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	raw  string
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDelimiter(ch byte) bool {
	return isSpace(ch) || strings.IndexByte("()!=&|<>", ch) >= 0
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0

	peek := func(offset int) byte {
		if i+offset >= len(input) {
			return 0
		}
		return input[i+offset]
	}
	emit := func(kind tokenKind, raw string) {
		tokens = append(tokens, token{kind: kind, raw: raw})
		i += len(raw)
	}

	for i < len(input) {
		ch := input[i]
		if isSpace(ch) {
			i++
			continue
		}

		switch ch {
		case '(':
			emit(tokenLParen, "(")
		case ')':
			emit(tokenRParen, ")")
		case '!':
			if peek(1) == '=' {
				emit(tokenNeq, "!=")
			} else {
				emit(tokenNot, "!")
			}
		case '=':
			if peek(1) != '=' {
				return nil, fmt.Errorf("rules/expr: unexpected '='; use '=='")
			}
			emit(tokenEq, "==")
		case '<':
			if peek(1) == '=' {
				emit(tokenLte, "<=")
			} else {
				emit(tokenLt, "<")
			}
		case '>':
			if peek(1) == '=' {
				emit(tokenGte, ">=")
			} else {
				emit(tokenGt, ">")
			}
		case '&':
			if peek(1) != '&' {
				return nil, fmt.Errorf("rules/expr: unexpected '&'; use '&&'")
			}
			emit(tokenAnd, "&&")
		case '|':
			if peek(1) != '|' {
				return nil, fmt.Errorf("rules/expr: unexpected '|'; use '||'")
			}
			emit(tokenOr, "||")
		case '"', '\'':
			value, next, err := readString(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenString, raw: value})
			i = next
		default:
			start := i
			for i < len(input) && !isDelimiter(input[i]) {
				i++
			}
			raw := input[start:i]
			switch strings.ToLower(raw) {
			case "true", "false":
				tokens = append(tokens, token{kind: tokenBool, raw: strings.ToLower(raw)})
			case "null", "nil":
				tokens = append(tokens, token{kind: tokenNull, raw: "null"})
			default:
				if looksLikeNumber(raw) {
					tokens = append(tokens, token{kind: tokenNumber, raw: raw})
				} else {
					tokens = append(tokens, token{kind: tokenIdentifier, raw: raw})
				}
			}
		}
	}
	return tokens, nil
}

// readString reads a quoted literal starting at input[start] and returns
// the unquoted value and the index after the closing quote.
func readString(input string, start int) (string, int, error) {
	quote := input[start]
	escaped := false
	for i := start + 1; i < len(input); i++ {
		c := input[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c != quote {
			continue
		}
		body := input[start+1 : i]
		if quote == '\'' {
			body = strings.ReplaceAll(body, `\'`, `'`)
			body = strings.ReplaceAll(body, `"`, `\"`)
		}
		value, err := strconv.Unquote(`"` + body + `"`)
		if err != nil {
			return "", 0, fmt.Errorf("rules/expr: invalid string literal: %w", err)
		}
		return value, i + 1, nil
	}
	return "", 0, errors.New("rules/expr: unterminated string literal")
}

func looksLikeNumber(raw string) bool {
	if raw == "" {
		return false
	}
	ch := raw[0]
	return (ch >= '0' && ch <= '9') || ch == '-' || ch == '+' || ch == '.'
}

type exprNode interface {
	eval(ctx rules.Context) (bool, error)
}

type exprOr struct {
	left  exprNode
	right exprNode
}

func (n exprOr) eval(ctx rules.Context) (bool, error) {
	ok, err := n.left.eval(ctx)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return n.right.eval(ctx)
}

type exprAnd struct {
	left  exprNode
	right exprNode
}

func (n exprAnd) eval(ctx rules.Context) (bool, error) {
	ok, err := n.left.eval(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return n.right.eval(ctx)
}

type exprNot struct {
	inner exprNode
}

func (n exprNot) eval(ctx rules.Context) (bool, error) {
	ok, err := n.inner.eval(ctx)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

type literalKind int

const (
	litString literalKind = iota
	litNumber
	litBool
	litNull
)

// operand is either an identifier or a literal.
type operand struct {
	identifier string
	literal    *literal
}

type literal struct {
	kind   literalKind
	raw    string
	number float64
}

func (o operand) resolve(ctx rules.Context) any {
	if o.literal == nil {
		value, _ := lookup(ctx, o.identifier)
		return value
	}
	switch o.literal.kind {
	case litNumber:
		return o.literal.number
	case litBool:
		return o.literal.raw == "true"
	case litNull:
		return nil
	default:
		return o.literal.raw
	}
}

type exprCompare struct {
	left  operand
	op    tokenKind
	right operand
}

func (n exprCompare) eval(ctx rules.Context) (bool, error) {
	left, right := n.left.resolve(ctx), n.right.resolve(ctx)

	// A literal on either side fixes how the other side is coerced.
	if lit := n.typingLiteral(); lit != nil {
		return n.compareWithLiteral(*lit, left, right)
	}

	switch n.op {
	case tokenEq:
		return equal(left, right), nil
	case tokenNeq:
		return !equal(left, right), nil
	default:
		return order(n.op, left, right)
	}
}

func (n exprCompare) typingLiteral() *literal {
	if n.right.literal != nil {
		return n.right.literal
	}
	return n.left.literal
}

func (n exprCompare) compareWithLiteral(lit literal, left, right any) (bool, error) {
	switch lit.kind {
	case litNull:
		if n.op != tokenEq && n.op != tokenNeq {
			return false, fmt.Errorf("rules/expr: unsupported operator %q for null literal", opString(n.op))
		}
		same := left == nil && right == nil
		if n.op == tokenEq {
			return same, nil
		}
		return !same, nil
	case litBool:
		if n.op != tokenEq && n.op != tokenNeq {
			return false, fmt.Errorf("rules/expr: unsupported operator %q for bool literal", opString(n.op))
		}
		l, _ := coerceBool(left)
		r, _ := coerceBool(right)
		if n.op == tokenEq {
			return l == r, nil
		}
		return l != r, nil
	case litNumber:
		l, lok := coerceNumber(left)
		r, rok := coerceNumber(right)
		if !lok || !rok {
			// Missing or non-numeric values never satisfy a numeric
			// comparison, except through !=.
			return n.op == tokenNeq, nil
		}
		return compareNumbers(n.op, l, r), nil
	default:
		// Missing values compare as the empty string.
		return compareStrings(n.op, coerceString(left), coerceString(right)), nil
	}
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, ok := a.(bool); ok {
		y, ok := b.(bool)
		return ok && x == y
	}
	_, aString := a.(string)
	_, bString := b.(string)
	if !aString && !bString {
		if x, ok := coerceNumber(a); ok {
			if y, ok := coerceNumber(b); ok {
				return x == y
			}
		}
	}
	return coerceString(a) == coerceString(b)
}

func order(op tokenKind, a, b any) (bool, error) {
	if a == nil || b == nil {
		return false, nil
	}
	x, xok := a.(string)
	y, yok := b.(string)
	if xok && yok {
		return compareStrings(op, x, y), nil
	}
	l, lok := coerceNumber(a)
	r, rok := coerceNumber(b)
	if !lok || !rok {
		return false, fmt.Errorf("rules/expr: cannot order %T and %T", a, b)
	}
	return compareNumbers(op, l, r), nil
}

func compareNumbers(op tokenKind, l, r float64) bool {
	switch op {
	case tokenEq:
		return l == r
	case tokenNeq:
		return l != r
	case tokenLt:
		return l < r
	case tokenLte:
		return l <= r
	case tokenGt:
		return l > r
	default:
		return l >= r
	}
}

func compareStrings(op tokenKind, l, r string) bool {
	switch op {
	case tokenEq:
		return l == r
	case tokenNeq:
		return l != r
	case tokenLt:
		return l < r
	case tokenLte:
		return l <= r
	case tokenGt:
		return l > r
	default:
		return l >= r
	}
}

func opString(op tokenKind) string {
	switch op {
	case tokenEq:
		return "=="
	case tokenNeq:
		return "!="
	case tokenLt:
		return "<"
	case tokenLte:
		return "<="
	case tokenGt:
		return ">"
	case tokenGte:
		return ">="
	default:
		return "?"
	}
}

type exprTruthy struct {
	identifier string
}

func (n exprTruthy) eval(ctx rules.Context) (bool, error) {
	value, ok := lookup(ctx, n.identifier)
	if !ok {
		return false, nil
	}
	return truthy(value), nil
}

type tokenStream struct {
	tokens []token
	pos    int
}

func parseExpression(tokens []token) (exprNode, error) {
	stream := &tokenStream{tokens: tokens}
	node, err := parseOr(stream)
	if err != nil {
		return nil, err
	}
	if stream.pos < len(stream.tokens) {
		return nil, fmt.Errorf("rules/expr: unexpected token %q", stream.tokens[stream.pos].raw)
	}
	return node, nil
}

func parseOr(stream *tokenStream) (exprNode, error) {
	left, err := parseAnd(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenOr) {
		right, err := parseAnd(stream)
		if err != nil {
			return nil, err
		}
		left = exprOr{left: left, right: right}
	}
	return left, nil
}

func parseAnd(stream *tokenStream) (exprNode, error) {
	left, err := parseUnary(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenAnd) {
		right, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		left = exprAnd{left: left, right: right}
	}
	return left, nil
}

func parseUnary(stream *tokenStream) (exprNode, error) {
	if stream.match(tokenNot) {
		inner, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		return exprNot{inner: inner}, nil
	}
	return parsePrimary(stream)
}

func parsePrimary(stream *tokenStream) (exprNode, error) {
	if stream.match(tokenLParen) {
		inner, err := parseOr(stream)
		if err != nil {
			return nil, err
		}
		if !stream.match(tokenRParen) {
			return nil, errors.New("rules/expr: missing closing ')'")
		}
		return inner, nil
	}

	if stream.pos >= len(stream.tokens) {
		return nil, errors.New("rules/expr: empty expression")
	}
	left, err := stream.consumeOperand()
	if err != nil {
		return nil, err
	}

	if op, ok := stream.consumeComparison(); ok {
		right, err := stream.consumeOperand()
		if err != nil {
			return nil, err
		}
		return exprCompare{left: left, op: op, right: right}, nil
	}

	if left.literal != nil {
		return nil, fmt.Errorf("rules/expr: literal %q must be compared", left.literal.raw)
	}
	return exprTruthy{identifier: left.identifier}, nil
}

func (s *tokenStream) match(kind tokenKind) bool {
	if s.pos >= len(s.tokens) || s.tokens[s.pos].kind != kind {
		return false
	}
	s.pos++
	return true
}

func (s *tokenStream) consumeComparison() (tokenKind, bool) {
	if s.pos >= len(s.tokens) {
		return 0, false
	}
	switch kind := s.tokens[s.pos].kind; kind {
	case tokenEq, tokenNeq, tokenLt, tokenLte, tokenGt, tokenGte:
		s.pos++
		return kind, true
	default:
		return 0, false
	}
}

func (s *tokenStream) consumeOperand() (operand, error) {
	if s.pos >= len(s.tokens) {
		return operand{}, errors.New("rules/expr: missing operand")
	}
	tok := s.tokens[s.pos]
	s.pos++
	switch tok.kind {
	case tokenIdentifier:
		return operand{identifier: tok.raw}, nil
	case tokenString:
		return operand{literal: &literal{kind: litString, raw: tok.raw}}, nil
	case tokenNumber:
		n, err := strconv.ParseFloat(tok.raw, 64)
		if err != nil {
			return operand{}, fmt.Errorf("rules/expr: invalid number literal %q", tok.raw)
		}
		return operand{literal: &literal{kind: litNumber, raw: tok.raw, number: n}}, nil
	case tokenBool:
		return operand{literal: &literal{kind: litBool, raw: tok.raw}}, nil
	case tokenNull:
		return operand{literal: &literal{kind: litNull, raw: "null"}}, nil
	default:
		return operand{}, fmt.Errorf("rules/expr: expected identifier or literal, got %q", tok.raw)
	}
}

func lookup(ctx rules.Context, key string) (any, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	if strings.HasPrefix(strings.ToLower(key), "extras.") {
		return lookupMap(ctx.Extras, strings.TrimSpace(key[len("extras."):]))
	}
	return lookupMap(ctx.Values, key)
}

func lookupMap(values map[string]any, path string) (any, bool) {
	if len(values) == 0 || path == "" {
		return nil, false
	}
	if v, ok := values[path]; ok {
		return v, true
	}

	var current any = values
	for _, part := range strings.Split(path, ".") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, false
		}
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(typed) {
				return nil, false
			}
			current = typed[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}
	if n, ok := coerceNumber(value); ok {
		return n != 0
	}
	return true
}

func coerceBool(value any) (bool, bool) {
	switch v := value.(type) {
	case nil:
		return false, false
	case bool:
		return v, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err == nil {
			return parsed, true
		}
		return strings.TrimSpace(v) != "", true
	default:
		return truthy(value), true
	}
}

func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(value)
	}
}

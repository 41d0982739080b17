package expression

import (
	"regexp"

	"github.com/shopspring/decimal"

	"sage/internal/errors"
)

// AST node variants, one per operator kind.
type node interface{ isNode() }

type litNode struct{ val Value }

type listNode struct{ elems []node }

// colNode is a column reference: df['col'], df['catalog']['col'], or a
// bare column identifier. Resolution against the evaluation context
// happens at eval time.
type colNode struct{ keys []string }

// frameNode is a whole row-set reference, only meaningful as an apply
// target: bare df, or a single-key df['catalog'] at package scope.
type frameNode struct{ catalog string }

// paramNode is a lambda-parameter cell reference: r['col']
type paramNode struct {
	param  string
	column string
}

// paramValueNode is a bare lambda parameter, bound per element when
// applying over a single column
type paramValueNode struct{ param string }

type binaryOp int

const (
	opAnd binaryOp = iota
	opOr
	opEQ
	opNE
	opGT
	opLT
	opGE
	opLE
	opAdd
	opSub
	opMul
	opDiv
)

type binaryNode struct {
	op          binaryOp
	left, right node
}

type notNode struct{ expr node }

type negNode struct{ expr node }

// castNode is .astype(float) / .astype(int)
type castNode struct {
	expr  node
	toInt bool
}

// strNode is .str.match(pattern) / .str.contains(pattern).
// match is anchored at the start of the value; contains is not.
type strNode struct {
	expr     node
	re       *regexp.Regexp
	contains bool
}

// nullNode is .isnull() / .notnull()
type nullNode struct {
	expr    node
	notNull bool
}

type sumNode struct{ expr node }

type betweenNode struct{ expr, low, high node }

type isinNode struct{ expr, set node }

// datetimeNode is to_datetime(expr)
type datetimeNode struct{ expr node }

// dateFieldNode is .dt.year / .dt.month / .dt.day
type dateFieldNode struct {
	expr  node
	field string
}

// applyNode is .apply(lambda p: body); the body is parsed in the same
// closed grammar with p bound per row (frame target) or per cell
// (column target)
type applyNode struct {
	target node
	param  string
	body   node
}

func (litNode) isNode()        {}
func (listNode) isNode()       {}
func (colNode) isNode()        {}
func (frameNode) isNode()      {}
func (paramNode) isNode()      {}
func (paramValueNode) isNode() {}
func (binaryNode) isNode()     {}
func (notNode) isNode()        {}
func (negNode) isNode()        {}
func (castNode) isNode()       {}
func (strNode) isNode()        {}
func (nullNode) isNode()       {}
func (sumNode) isNode()        {}
func (betweenNode) isNode()    {}
func (isinNode) isNode()       {}
func (datetimeNode) isNode()   {}
func (dateFieldNode) isNode()  {}
func (applyNode) isNode()      {}

// Compiled is a parsed, reusable expression
type Compiled struct {
	src  string
	root node
}

// Source returns the original expression text
func (c *Compiled) Source() string {
	return c.src
}

// Compile parses an expression into its AST. Failures are
// EXPRESSION_ERROR with reason PARSE_ERROR or UNKNOWN_OPERATOR.
func Compile(src string) (*Compiled, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, errors.Wrap(errors.KindExpression, errors.ReasonParseError, "cannot tokenize expression", err)
	}

	p := &parser{tokens: tokens}
	root, perr := p.parseExpr()
	if perr != nil {
		return nil, perr
	}
	if p.peek().kind != tokEOF {
		return nil, errors.Expressionf(errors.ReasonParseError, "unexpected %s after expression", p.peek())
	}
	return &Compiled{src: src, root: root}, nil
}

type parser struct {
	tokens []token
	pos    int

	// params are lambda parameters currently in scope
	params []string
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(kind tokenKind) bool {
	if p.peek().kind == kind {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.peek()
	if t.kind != kind {
		return t, errors.Expressionf(errors.ReasonParseError, "expected %s, found %s", what, t)
	}
	p.pos++
	return t, nil
}

func (p *parser) boundParam(name string) bool {
	for _, b := range p.params {
		if b == name {
			return true
		}
	}
	return false
}

// parseExpr parses with | as the lowest-precedence operator
func (p *parser) parseExpr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept(tokOr) {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: opOr, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.accept(tokAnd) {
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: opAnd, left: left, right: right}
	}
	return left, nil
}

var comparisonOps = map[tokenKind]binaryOp{
	tokEQ: opEQ, tokNE: opNE,
	tokGT: opGT, tokLT: opLT,
	tokGE: opGE, tokLE: opLE,
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if op, ok := comparisonOps[p.peek().kind]; ok {
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op binaryOp
		switch p.peek().kind {
		case tokPlus:
			op = opAdd
		case tokMinus:
			op = opSub
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op binaryOp
		switch p.peek().kind {
		case tokStar:
			op = opMul
		case tokSlash:
			op = opDiv
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	switch p.peek().kind {
	case tokNot:
		p.next()
		expr, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{expr: expr}, nil
	case tokMinus:
		p.next()
		expr, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negNode{expr: expr}, nil
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary followed by any chain of method calls
func (p *parser) parsePostfix() (node, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for p.accept(tokDot) {
		name, err := p.expect(tokIdent, "a method name")
		if err != nil {
			return nil, err
		}
		expr, err = p.parseMethod(expr, name.text)
		if err != nil {
			return nil, err
		}
	}
	return expr, nil
}

func (p *parser) parseMethod(target node, name string) (node, error) {
	switch name {
	case "astype":
		if _, err := p.expect(tokLParen, "'('"); err != nil {
			return nil, err
		}
		kind, err := p.expect(tokIdent, "float or int")
		if err != nil {
			return nil, err
		}
		if kind.text != "float" && kind.text != "int" {
			return nil, errors.Expressionf(errors.ReasonUnknownOperator, "astype(%s) is not supported", kind.text)
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return castNode{expr: target, toInt: kind.text == "int"}, nil

	case "str":
		if _, err := p.expect(tokDot, "'.'"); err != nil {
			return nil, err
		}
		fn, err := p.expect(tokIdent, "match or contains")
		if err != nil {
			return nil, err
		}
		if fn.text != "match" && fn.text != "contains" {
			return nil, errors.Expressionf(errors.ReasonUnknownOperator, "str.%s is not supported", fn.text)
		}
		if _, err := p.expect(tokLParen, "'('"); err != nil {
			return nil, err
		}
		pat, err := p.expect(tokString, "a pattern string")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		source := pat.text
		if fn.text == "match" {
			// match is anchored at the start of the value
			source = "^(?:" + source + ")"
		}
		re, rerr := regexp.Compile(source)
		if rerr != nil {
			return nil, errors.Wrap(errors.KindExpression, errors.ReasonParseError, "invalid pattern", rerr)
		}
		return strNode{expr: target, re: re, contains: fn.text == "contains"}, nil

	case "isnull", "notnull":
		if err := p.emptyArgs(); err != nil {
			return nil, err
		}
		return nullNode{expr: target, notNull: name == "notnull"}, nil

	case "sum":
		if err := p.emptyArgs(); err != nil {
			return nil, err
		}
		return sumNode{expr: target}, nil

	case "between":
		if _, err := p.expect(tokLParen, "'('"); err != nil {
			return nil, err
		}
		low, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma, "','"); err != nil {
			return nil, err
		}
		high, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return betweenNode{expr: target, low: low, high: high}, nil

	case "isin":
		if _, err := p.expect(tokLParen, "'('"); err != nil {
			return nil, err
		}
		set, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return isinNode{expr: target, set: set}, nil

	case "dt":
		if _, err := p.expect(tokDot, "'.'"); err != nil {
			return nil, err
		}
		field, err := p.expect(tokIdent, "year, month or day")
		if err != nil {
			return nil, err
		}
		switch field.text {
		case "year", "month", "day":
			return dateFieldNode{expr: target, field: field.text}, nil
		}
		return nil, errors.Expressionf(errors.ReasonUnknownOperator, "dt.%s is not supported", field.text)

	case "apply":
		if _, err := p.expect(tokLParen, "'('"); err != nil {
			return nil, err
		}
		kw, err := p.expect(tokIdent, "lambda")
		if err != nil {
			return nil, err
		}
		if kw.text != "lambda" {
			return nil, errors.Expressionf(errors.ReasonParseError, "apply requires a lambda, found %q", kw.text)
		}
		param, err := p.expect(tokIdent, "a parameter name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokColon, "':'"); err != nil {
			return nil, err
		}
		p.params = append(p.params, param.text)
		body, err := p.parseExpr()
		p.params = p.params[:len(p.params)-1]
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return applyNode{target: target, param: param.text, body: body}, nil
	}

	return nil, errors.Expressionf(errors.ReasonUnknownOperator, "unknown function %q", name)
}

func (p *parser) emptyArgs() error {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return err
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return err
	}
	return nil
}

func (p *parser) parsePrimary() (node, error) {
	t := p.peek()
	switch t.kind {
	case tokLParen:
		p.next()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return expr, nil

	case tokLBracket:
		p.next()
		var elems []node
		for p.peek().kind != tokRBracket {
			elem, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, elem)
			if !p.accept(tokComma) {
				break
			}
		}
		if _, err := p.expect(tokRBracket, "']'"); err != nil {
			return nil, err
		}
		return listNode{elems: elems}, nil

	case tokNumber:
		p.next()
		num, err := decimal.NewFromString(t.text)
		if err != nil {
			return nil, errors.Expressionf(errors.ReasonParseError, "invalid number %q", t.text)
		}
		return litNode{val: Number(num)}, nil

	case tokString:
		p.next()
		return litNode{val: String(t.text)}, nil

	case tokIdent:
		p.next()
		return p.parseIdent(t.text)
	}

	return nil, errors.Expressionf(errors.ReasonParseError, "unexpected %s", t)
}

func (p *parser) parseIdent(name string) (node, error) {
	switch name {
	case "True":
		return litNode{val: Bool(true)}, nil
	case "False":
		return litNode{val: Bool(false)}, nil
	case "None":
		return litNode{val: Null()}, nil
	case "to_datetime":
		if _, err := p.expect(tokLParen, "'('"); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return datetimeNode{expr: expr}, nil
	}

	if p.boundParam(name) {
		if p.peek().kind == tokLBracket {
			column, err := p.indexKey()
			if err != nil {
				return nil, err
			}
			return paramNode{param: name, column: column}, nil
		}
		return paramValueNode{param: name}, nil
	}

	if name == "df" {
		if p.peek().kind != tokLBracket {
			return frameNode{}, nil
		}
		first, err := p.indexKey()
		if err != nil {
			return nil, err
		}
		if p.peek().kind == tokLBracket {
			second, err := p.indexKey()
			if err != nil {
				return nil, err
			}
			return colNode{keys: []string{first, second}}, nil
		}
		return colNode{keys: []string{first}}, nil
	}

	// A bare identifier is a column of the current catalog
	return colNode{keys: []string{name}}, nil
}

// indexKey parses ['literal']
func (p *parser) indexKey() (string, error) {
	if _, err := p.expect(tokLBracket, "'['"); err != nil {
		return "", err
	}
	key, err := p.expect(tokString, "a quoted name")
	if err != nil {
		return "", err
	}
	if _, err := p.expect(tokRBracket, "']'"); err != nil {
		return "", err
	}
	return key.text, nil
}

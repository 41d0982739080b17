package expression

import (
	"fmt"
	"strings"
	"unicode"
)

// tokenKind identifies a lexical token
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokDot
	tokComma
	tokColon
	tokGT
	tokLT
	tokGE
	tokLE
	tokEQ
	tokNE
	tokAnd
	tokOr
	tokNot
	tokPlus
	tokMinus
	tokStar
	tokSlash
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of expression"
	}
	return fmt.Sprintf("%q", t.text)
}

// lex splits an expression into tokens. The operator set is closed;
// anything outside it is a parse error.
func lex(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		ch := src[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++

		case ch == '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
		case ch == ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
		case ch == '[':
			tokens = append(tokens, token{tokLBracket, "[", i})
			i++
		case ch == ']':
			tokens = append(tokens, token{tokRBracket, "]", i})
			i++
		case ch == '.':
			// A dot may also start a decimal literal like .5
			if i+1 < len(src) && isDigit(src[i+1]) {
				start := i
				i++
				for i < len(src) && isDigit(src[i]) {
					i++
				}
				tokens = append(tokens, token{tokNumber, src[start:i], start})
			} else {
				tokens = append(tokens, token{tokDot, ".", i})
				i++
			}
		case ch == ',':
			tokens = append(tokens, token{tokComma, ",", i})
			i++
		case ch == ':':
			tokens = append(tokens, token{tokColon, ":", i})
			i++
		case ch == '&':
			tokens = append(tokens, token{tokAnd, "&", i})
			i++
		case ch == '|':
			tokens = append(tokens, token{tokOr, "|", i})
			i++
		case ch == '~':
			tokens = append(tokens, token{tokNot, "~", i})
			i++
		case ch == '+':
			tokens = append(tokens, token{tokPlus, "+", i})
			i++
		case ch == '-':
			tokens = append(tokens, token{tokMinus, "-", i})
			i++
		case ch == '*':
			tokens = append(tokens, token{tokStar, "*", i})
			i++
		case ch == '/':
			tokens = append(tokens, token{tokSlash, "/", i})
			i++

		case ch == '>':
			if i+1 < len(src) && src[i+1] == '=' {
				tokens = append(tokens, token{tokGE, ">=", i})
				i += 2
			} else {
				tokens = append(tokens, token{tokGT, ">", i})
				i++
			}
		case ch == '<':
			if i+1 < len(src) && src[i+1] == '=' {
				tokens = append(tokens, token{tokLE, "<=", i})
				i += 2
			} else {
				tokens = append(tokens, token{tokLT, "<", i})
				i++
			}
		case ch == '=':
			if i+1 < len(src) && src[i+1] == '=' {
				tokens = append(tokens, token{tokEQ, "==", i})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected '=' at offset %d (did you mean '==')", i)
			}
		case ch == '!':
			if i+1 < len(src) && src[i+1] == '=' {
				tokens = append(tokens, token{tokNE, "!=", i})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected '!' at offset %d", i)
			}

		case ch == '\'' || ch == '"':
			text, next, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{tokString, text, i})
			i = next

		case isDigit(ch):
			start := i
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			tokens = append(tokens, token{tokNumber, src[start:i], start})

		case isIdentStart(rune(ch)):
			start := i
			for i < len(src) && isIdentPart(rune(src[i])) {
				i++
			}
			tokens = append(tokens, token{tokIdent, src[start:i], start})

		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", ch, i)
		}
	}

	tokens = append(tokens, token{tokEOF, "", len(src)})
	return tokens, nil
}

// lexString reads a quoted literal starting at src[start]; returns the
// unquoted text and the offset past the closing quote
func lexString(src string, start int) (string, int, error) {
	quote := src[start]
	var sb strings.Builder
	i := start + 1
	for i < len(src) {
		ch := src[i]
		if ch == '\\' && i+1 < len(src) {
			sb.WriteByte(src[i+1])
			i += 2
			continue
		}
		if ch == quote {
			return sb.String(), i + 1, nil
		}
		sb.WriteByte(ch)
		i++
	}
	return "", 0, fmt.Errorf("unterminated string literal at offset %d", start)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}

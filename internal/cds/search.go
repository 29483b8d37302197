package cds

import (
	"fmt"
	"strings"
)

// searchProperties maps UPnP search property names to catalog columns
// through the o/d query aliases.
var searchProperties = map[string]string{
	"@id":         "o.object_id",
	"@parentID":   "o.parent_id",
	"@refID":      "o.ref_id",
	"dc:title":    "d.title",
	"dc:date":     "d.date",
	"dc:creator":  "d.creator",
	"upnp:class":  "o.class",
	"upnp:album":  "d.album",
	"upnp:artist": "d.artist",
	"upnp:actor":  "d.artist",
	"upnp:genre":  "d.genre",
}

// TranslateSearch converts a SearchCriteria expression into a WHERE
// fragment with bound arguments. The empty criteria and "*" match
// everything. Unknown properties or operators are translation errors,
// which the dispatcher maps to fault 708.
func TranslateSearch(criteria string) (string, []any, error) {
	criteria = strings.TrimSpace(criteria)
	if criteria == "" || criteria == "*" {
		return "", nil, nil
	}

	p := &searchParser{lex: lexer{input: criteria}}
	where, args, err := p.parseOr()
	if err != nil {
		return "", nil, err
	}
	if tok, err := p.peek(); err != nil {
		return "", nil, err
	} else if tok.kind != tokEOF {
		return "", nil, fmt.Errorf("unexpected %q after expression", tok.val)
	}
	return where, args, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLParen
	tokRParen
	tokWord
	tokString
)

type token struct {
	kind tokenKind
	val  string
}

// lexer splits a search expression into parens, bare words, and quoted
// strings. XML entities were already decoded by the SOAP body parser, so
// only backslash escapes remain inside string literals.
type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF}, nil
	}

	switch c := l.input[l.pos]; c {
	case '(':
		l.pos++
		return token{kind: tokLParen, val: "("}, nil
	case ')':
		l.pos++
		return token{kind: tokRParen, val: ")"}, nil
	case '"':
		return l.quoted()
	default:
		start := l.pos
		for l.pos < len(l.input) && !isSpace(l.input[l.pos]) &&
			!strings.ContainsRune(`()"`, rune(l.input[l.pos])) {
			l.pos++
		}
		return token{kind: tokWord, val: l.input[start:l.pos]}, nil
	}
}

func (l *lexer) quoted() (token, error) {
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch c {
		case '\\':
			if l.pos+1 >= len(l.input) {
				return token{}, fmt.Errorf("dangling escape in string literal")
			}
			b.WriteByte(l.input[l.pos+1])
			l.pos += 2
		case '"':
			l.pos++
			return token{kind: tokString, val: b.String()}, nil
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return token{}, fmt.Errorf("unterminated string literal")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

type searchParser struct {
	lex lexer
	buf *token
}

func (p *searchParser) peek() (token, error) {
	if p.buf == nil {
		tok, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.buf = &tok
	}
	return *p.buf, nil
}

func (p *searchParser) advance() (token, error) {
	tok, err := p.peek()
	p.buf = nil
	return tok, err
}

func (p *searchParser) parseOr() (string, []any, error) {
	where, args, err := p.parseAnd()
	if err != nil {
		return "", nil, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return "", nil, err
		}
		if tok.kind != tokWord || tok.val != "or" {
			return where, args, nil
		}
		p.buf = nil
		rhs, rargs, err := p.parseAnd()
		if err != nil {
			return "", nil, err
		}
		where = "(" + where + " OR " + rhs + ")"
		args = append(args, rargs...)
	}
}

func (p *searchParser) parseAnd() (string, []any, error) {
	where, args, err := p.parseTerm()
	if err != nil {
		return "", nil, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return "", nil, err
		}
		if tok.kind != tokWord || tok.val != "and" {
			return where, args, nil
		}
		p.buf = nil
		rhs, rargs, err := p.parseTerm()
		if err != nil {
			return "", nil, err
		}
		where = "(" + where + " AND " + rhs + ")"
		args = append(args, rargs...)
	}
}

func (p *searchParser) parseTerm() (string, []any, error) {
	tok, err := p.advance()
	if err != nil {
		return "", nil, err
	}

	if tok.kind == tokLParen {
		where, args, err := p.parseOr()
		if err != nil {
			return "", nil, err
		}
		closing, err := p.advance()
		if err != nil {
			return "", nil, err
		}
		if closing.kind != tokRParen {
			return "", nil, fmt.Errorf("expected ) got %q", closing.val)
		}
		return where, args, nil
	}

	if tok.kind != tokWord {
		return "", nil, fmt.Errorf("expected property got %q", tok.val)
	}
	column, ok := searchProperties[tok.val]
	if !ok {
		return "", nil, fmt.Errorf("unknown property %q", tok.val)
	}

	op, err := p.advance()
	if err != nil {
		return "", nil, err
	}
	if op.kind != tokWord {
		return "", nil, fmt.Errorf("expected operator got %q", op.val)
	}

	if op.val == "exists" {
		val, err := p.advance()
		if err != nil {
			return "", nil, err
		}
		switch val.val {
		case "true":
			return column + " IS NOT NULL", nil, nil
		case "false":
			return column + " IS NULL", nil, nil
		default:
			return "", nil, fmt.Errorf("exists needs true or false, got %q", val.val)
		}
	}

	val, err := p.advance()
	if err != nil {
		return "", nil, err
	}
	if val.kind != tokString {
		return "", nil, fmt.Errorf("expected quoted value got %q", val.val)
	}
	value := val.val
	// Class literals carry the object. prefix on the wire; the catalog
	// stores classes without it.
	if column == "o.class" {
		value = strings.TrimPrefix(value, "object.")
	}

	switch op.val {
	case "=", "!=", "<", "<=", ">", ">=":
		return column + " " + op.val + " ?", []any{value}, nil
	case "contains":
		return column + " LIKE ?", []any{"%" + value + "%"}, nil
	case "derivedfrom":
		return column + " LIKE ?", []any{value + "%"}, nil
	default:
		return "", nil, fmt.Errorf("unknown operator %q", op.val)
	}
}

package filter

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kasuganosora/odatacount/pkg/edm"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokLiteral
	tokOpen
	tokClose
	tokComma
	tokSlash
	tokMinus
)

type token struct {
	kind tokenKind
	text string
	pos  int
	lit  edm.Literal
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q at %d", t.text, t.pos)
}

var keywordLiterals = map[string]bool{"null": true, "true": true, "false": true, "INF": true, "NaN": true}

func isWordStart(c byte) bool {
	return c == '_' || c == '$' || c < 0x80 && unicode.IsLetter(rune(c)) || c >= '0' && c <= '9' || c >= 0x80
}

func isWordChar(c byte) bool {
	return isWordStart(c) || c == '.' || c == '-' || c == ':' || c == '+'
}

// lex splits a $filter expression into tokens. Literals are parsed
// eagerly with edm.ParseLiteral; enum literals need m.
func lex(m *edm.Model, s string) ([]token, error) {
	var out []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
			continue
		case c == '(':
			out = append(out, token{kind: tokOpen, text: "(", pos: i})
			i++
			continue
		case c == ')':
			out = append(out, token{kind: tokClose, text: ")", pos: i})
			i++
			continue
		case c == ',':
			out = append(out, token{kind: tokComma, text: ",", pos: i})
			i++
			continue
		case c == '/':
			out = append(out, token{kind: tokSlash, text: "/", pos: i})
			i++
			continue
		case c == '\'':
			end, err := scanString(s, i)
			if err != nil {
				return nil, err
			}
			tok, err := literalToken(m, s[i:end], i)
			if err != nil {
				return nil, err
			}
			out = append(out, tok)
			i = end
			continue
		case c == '-' && (i+1 >= len(s) || !(s[i+1] >= '0' && s[i+1] <= '9')):
			out = append(out, token{kind: tokMinus, text: "-", pos: i})
			i++
			continue
		case !isWordStart(c) && c != '-':
			return nil, invalid("unexpected character %q at %d", c, i)
		}

		start := i
		i++
		for i < len(s) && isWordChar(s[i]) {
			i++
		}
		// typed literal: duration'P1D', Ns.Enum'Member'
		if i < len(s) && s[i] == '\'' {
			end, err := scanString(s, i)
			if err != nil {
				return nil, err
			}
			tok, err := literalToken(m, s[start:end], start)
			if err != nil {
				return nil, err
			}
			out = append(out, tok)
			i = end
			continue
		}

		word := s[start:i]
		if keywordLiterals[word] || isLiteralWord(word) {
			tok, err := literalToken(m, word, start)
			if err != nil {
				return nil, err
			}
			out = append(out, tok)
			continue
		}
		if strings.ContainsAny(word, ":+") || strings.Contains(word, "-") {
			return nil, invalid("unexpected token %q at %d", word, start)
		}
		out = append(out, token{kind: tokIdent, text: word, pos: start})
	}
	return append(out, token{kind: tokEOF, pos: len(s)}), nil
}

// isLiteralWord reports words that start like numbers, dates or guids
func isLiteralWord(w string) bool {
	if w[0] == '-' || w[0] >= '0' && w[0] <= '9' {
		return true
	}
	if len(w) == 36 && strings.Count(w, "-") == 4 {
		return true
	}
	return false
}

func scanString(s string, start int) (int, error) {
	for i := start + 1; i < len(s); i++ {
		if s[i] != '\'' {
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			i++
			continue
		}
		return i + 1, nil
	}
	return 0, invalid("unterminated string literal at %d", start)
}

func literalToken(m *edm.Model, text string, pos int) (token, error) {
	lit, err := edm.ParseLiteral(m, text)
	if err != nil {
		return token{}, invalid("%v at %d", err, pos)
	}
	return token{kind: tokLiteral, text: text, pos: pos, lit: lit}, nil
}

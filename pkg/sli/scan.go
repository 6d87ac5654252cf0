package sli

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenKind represents the kind of token.
type TokenKind int

const (
	TokenInt TokenKind = iota
	TokenFloat
	TokenString
	TokenLiteral    // /name
	TokenName       // executable name
	TokenArrayOpen  // [
	TokenArrayClose // ]
	TokenProcOpen   // {
	TokenProcClose  // }
	TokenDictOpen   // <<
	TokenDictClose  // >>
)

// Token is a lexical token of SLI source text.
type Token struct {
	Kind  TokenKind
	Text  string // names, literals and decoded strings
	Int   int64
	Float float64
	Pos   int
}

// SyntaxError reports malformed SLI text.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("sli: syntax error at offset %d: %s", e.Pos, e.Msg)
}

// Scan splits src into tokens. Comments run from % to the end of the line.
func Scan(src string) ([]Token, error) {
	var toks []Token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case isSpace(rune(c)):
			i++
		case c == '%':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '[':
			toks = append(toks, Token{Kind: TokenArrayOpen, Pos: i})
			i++
		case c == ']':
			toks = append(toks, Token{Kind: TokenArrayClose, Pos: i})
			i++
		case c == '{':
			toks = append(toks, Token{Kind: TokenProcOpen, Pos: i})
			i++
		case c == '}':
			toks = append(toks, Token{Kind: TokenProcClose, Pos: i})
			i++
		case c == '<' || c == '>':
			if i+1 >= len(src) || src[i+1] != c {
				return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected %q", c)}
			}
			kind := TokenDictOpen
			if c == '>' {
				kind = TokenDictClose
			}
			toks = append(toks, Token{Kind: kind, Pos: i})
			i += 2
		case c == ')':
			return nil, &SyntaxError{Pos: i, Msg: "unbalanced )"}
		case c == '(':
			s, n, err := scanString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, Token{Kind: TokenString, Text: s, Pos: i})
			i = n
		case c == '/':
			start := i + 1
			end := scanName(src, start)
			if end == start {
				return nil, &SyntaxError{Pos: i, Msg: "empty literal name"}
			}
			toks = append(toks, Token{Kind: TokenLiteral, Text: src[start:end], Pos: i})
			i = end
		default:
			end := scanName(src, i)
			toks = append(toks, classify(src[i:end], i))
			i = end
		}
	}
	return toks, nil
}

func scanName(src string, i int) int {
	for i < len(src) && !isSpace(rune(src[i])) && !strings.ContainsRune(delimiters, rune(src[i])) {
		i++
	}
	return i
}

func classify(text string, pos int) Token {
	if looksNumeric(text) {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return Token{Kind: TokenInt, Text: text, Int: n, Pos: pos}
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return Token{Kind: TokenFloat, Text: text, Float: f, Pos: pos}
		}
	}
	return Token{Kind: TokenName, Text: text, Pos: pos}
}

func looksNumeric(text string) bool {
	i := 0
	if text[0] == '-' || text[0] == '+' {
		i++
	}
	if i < len(text) && text[i] == '.' {
		i++
	}
	return i < len(text) && text[i] >= '0' && text[i] <= '9'
}

// scanString reads a parenthesized string starting at src[start] == '('.
// Parentheses nest; backslash escapes \n \t \r \\ \( and \).
func scanString(src string, start int) (string, int, error) {
	var b strings.Builder
	depth := 0
	for i := start; i < len(src); i++ {
		c := src[i]
		switch c {
		case '\\':
			i++
			if i >= len(src) {
				return "", 0, &SyntaxError{Pos: start, Msg: "unterminated string"}
			}
			switch src[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(src[i])
			}
			continue
		case '(':
			depth++
			if depth == 1 {
				continue
			}
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1, nil
			}
		}
		b.WriteByte(c)
	}
	return "", 0, &SyntaxError{Pos: start, Msg: "unterminated string"}
}

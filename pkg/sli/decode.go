package sli

import (
	"fmt"

	"github.com/germanamz/nestbridge/pkg/handles"
)

// Decode parses the textual form of exactly one value, as written by Encode
// or printed by the interpreter's == operator.
func Decode(text string) (any, error) {
	toks, err := Scan(text)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, &SyntaxError{Pos: 0, Msg: "empty value"}
	}

	d := &decoder{toks: toks}
	v, err := d.value()
	if err != nil {
		return nil, err
	}
	if d.pos != len(toks) {
		return nil, &SyntaxError{Pos: toks[d.pos].Pos, Msg: "trailing tokens after value"}
	}
	return v, nil
}

type decoder struct {
	toks []Token
	pos  int
}

func (d *decoder) next() (Token, bool) {
	if d.pos >= len(d.toks) {
		return Token{}, false
	}
	t := d.toks[d.pos]
	d.pos++
	return t, true
}

func (d *decoder) peek() (Token, bool) {
	if d.pos >= len(d.toks) {
		return Token{}, false
	}
	return d.toks[d.pos], true
}

func (d *decoder) value() (any, error) {
	tok, ok := d.next()
	if !ok {
		return nil, &SyntaxError{Pos: d.endPos(), Msg: "unexpected end of input"}
	}

	switch tok.Kind {
	case TokenInt:
		return tok.Int, nil
	case TokenFloat:
		return tok.Float, nil
	case TokenString:
		return tok.Text, nil
	case TokenLiteral:
		return Literal(tok.Text), nil
	case TokenName:
		switch tok.Text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, &SyntaxError{Pos: tok.Pos, Msg: fmt.Sprintf("unexpected name %q", tok.Text)}
	case TokenArrayOpen:
		return d.array(tok)
	case TokenDictOpen:
		return d.dict(tok)
	default:
		return nil, &SyntaxError{Pos: tok.Pos, Msg: "unexpected delimiter"}
	}
}

func (d *decoder) array(open Token) (any, error) {
	arr := Array{}
	for {
		tok, ok := d.peek()
		if !ok {
			return nil, &SyntaxError{Pos: open.Pos, Msg: "unterminated array"}
		}
		if tok.Kind == TokenArrayClose {
			d.pos++
			break
		}
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}

	// A trailing conversion operator turns the array into a handle sequence.
	if tok, ok := d.peek(); ok && tok.Kind == TokenName {
		switch tok.Text {
		case "cvnodecollection", "cvconnections":
			d.pos++
			s, err := handles.Parse(arr)
			if err != nil {
				return nil, &SyntaxError{Pos: tok.Pos, Msg: err.Error()}
			}
			if handles.IsSequenceOfConnections(s) != (tok.Text == "cvconnections") && len(arr) > 0 {
				return nil, &SyntaxError{Pos: tok.Pos, Msg: tok.Text + " applied to the wrong handle shape"}
			}
			if tok.Text == "cvconnections" && len(arr) == 0 {
				return handles.Connections{}, nil
			}
			return s, nil
		}
	}
	return arr, nil
}

func (d *decoder) dict(open Token) (any, error) {
	m := Dict{}
	for {
		tok, ok := d.next()
		if !ok {
			return nil, &SyntaxError{Pos: open.Pos, Msg: "unterminated dictionary"}
		}
		if tok.Kind == TokenDictClose {
			return m, nil
		}
		if tok.Kind != TokenLiteral {
			return nil, &SyntaxError{Pos: tok.Pos, Msg: "dictionary keys must be literal names"}
		}
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		m[tok.Text] = v
	}
}

func (d *decoder) endPos() int {
	if len(d.toks) == 0 {
		return 0
	}
	return d.toks[len(d.toks)-1].Pos
}

// Package machine is a reference SLI interpreter for the subset of the
// language the status layer emits. It executes source text against an
// operand stack and a Kernel of status dictionaries.
//
// The machine serves as the in-memory backend, as the peer behind the
// process and remote transports in tests, and as a development stand-in for
// a real simulation engine.
package machine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/germanamz/nestbridge/pkg/sli"
)

// mark is pushed by [ and << and consumed by ] and >>.
type mark struct{}

// procedure is a deferred body pushed by { ... }.
type procedure []item

type item struct {
	tok  sli.Token
	body procedure
	proc bool
}

// Machine is a stack interpreter bound to a Kernel. It is safe for
// concurrent use; executions are serialized.
type Machine struct {
	mu     sync.Mutex
	kernel *Kernel
	stack  []any
	out    []string
}

// New returns a Machine with an empty stack operating on k.
func New(k *Kernel) *Machine {
	return &Machine{kernel: k}
}

// Kernel returns the kernel the machine operates on.
func (m *Machine) Kernel() *Kernel { return m.kernel }

// Depth returns the current operand stack depth.
func (m *Machine) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack)
}

// Exec runs code and returns what == printed, space separated. A fault
// restores the operand stack to its state before the call; kernel changes
// made before the fault are kept.
func (m *Machine) Exec(ctx context.Context, code string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	toks, err := sli.Scan(code)
	if err != nil {
		return "", &sli.ExecutionError{Code: code, Message: err.Error()}
	}
	items, err := parse(toks)
	if err != nil {
		return "", &sli.ExecutionError{Code: code, Message: err.Error()}
	}

	saved := slices.Clone(m.stack)
	m.out = m.out[:0]

	if err := m.run(ctx, items); err != nil {
		m.stack = saved
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &sli.ExecutionError{Code: code, Message: err.Error()}
	}
	return strings.Join(m.out, " "), nil
}

func parse(toks []sli.Token) ([]item, error) {
	items, n, err := parseBlock(toks, 0, false)
	if err != nil {
		return nil, err
	}
	if n != len(toks) {
		return nil, errors.New("SyntaxError: unbalanced }")
	}
	return items, nil
}

func parseBlock(toks []sli.Token, i int, inProc bool) ([]item, int, error) {
	var items []item
	for i < len(toks) {
		tok := toks[i]
		switch tok.Kind {
		case sli.TokenProcOpen:
			body, next, err := parseBlock(toks, i+1, true)
			if err != nil {
				return nil, 0, err
			}
			items = append(items, item{body: body, proc: true})
			i = next
			continue
		case sli.TokenProcClose:
			if !inProc {
				return items, i, nil
			}
			return items, i + 1, nil
		}
		items = append(items, item{tok: tok})
		i++
	}
	if inProc {
		return nil, 0, errors.New("SyntaxError: unterminated procedure")
	}
	return items, i, nil
}

func (m *Machine) run(ctx context.Context, items []item) error {
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if it.proc {
			m.push(it.body)
			continue
		}

		tok := it.tok
		switch tok.Kind {
		case sli.TokenInt:
			m.push(tok.Int)
		case sli.TokenFloat:
			m.push(tok.Float)
		case sli.TokenString:
			m.push(tok.Text)
		case sli.TokenLiteral:
			m.push(sli.Literal(tok.Text))
		case sli.TokenArrayOpen, sli.TokenDictOpen:
			m.push(mark{})
		case sli.TokenArrayClose:
			elems, err := m.toMark("]")
			if err != nil {
				return err
			}
			m.push(sli.Array(elems))
		case sli.TokenDictClose:
			elems, err := m.toMark(">>")
			if err != nil {
				return err
			}
			d, err := pairs(elems)
			if err != nil {
				return err
			}
			m.push(d)
		case sli.TokenName:
			if err := m.call(ctx, tok.Text); err != nil {
				return err
			}
		default:
			return fmt.Errorf("SyntaxError: unexpected token at offset %d", tok.Pos)
		}
	}
	return nil
}

func (m *Machine) call(ctx context.Context, name string) error {
	switch name {
	case "true":
		m.push(true)
		return nil
	case "false":
		m.push(false)
		return nil
	}

	op, ok := m.builtin(name)
	if !ok {
		return fmt.Errorf("UndefinedName: %s", name)
	}
	if err := op(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (m *Machine) push(v any) {
	m.stack = append(m.stack, v)
}

func (m *Machine) pop() (any, error) {
	if len(m.stack) == 0 {
		return nil, errStackUnderflow
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func (m *Machine) toMark(closer string) ([]any, error) {
	for i := len(m.stack) - 1; i >= 0; i-- {
		if _, ok := m.stack[i].(mark); ok {
			elems := slices.Clone(m.stack[i+1:])
			m.stack = m.stack[:i]
			return elems, nil
		}
	}
	return nil, fmt.Errorf("UnmatchedClose: %s without opening mark", closer)
}

func pairs(elems []any) (sli.Dict, error) {
	if len(elems)%2 != 0 {
		return nil, errors.New("ArgumentType: dictionary needs key/value pairs")
	}
	d := make(sli.Dict, len(elems)/2)
	for i := 0; i < len(elems); i += 2 {
		key, ok := elems[i].(sli.Literal)
		if !ok {
			return nil, fmt.Errorf("ArgumentType: dictionary key must be a literal, got %T", elems[i])
		}
		d[string(key)] = elems[i+1]
	}
	return d, nil
}

// Package sli models the values exchanged with a stack-based SLI interpreter
// and the Channel through which operands are pushed, code is run and
// results are popped.
//
// Values use plain Go types so that decoded replies compare and serialize
// naturally:
//   - integers decode as int64, reals as float64, booleans as bool
//   - strings are string; names pushed as literals are [Literal]
//   - arrays are [Array] ([]any) and dictionaries are [Dict] (map[string]any)
//   - node collections and connection sequences are [handles.Nodes] and
//     [handles.Connections]
//
// Transports implement [Executor]; [NewChannel] turns any Executor into a
// Channel using the textual SLI encoding from [Encode] and [Decode].
package sli

import "strings"

// Literal is an SLI literal name, written /name.
type Literal string

// Dict is an SLI dictionary.
type Dict = map[string]any

// Array is an SLI array.
type Array = []any

const delimiters = "()[]{}<>/%"

// ValidName reports whether name can be written as an SLI name or literal.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if isSpace(r) || strings.ContainsRune(delimiters, r) {
			return false
		}
	}
	return true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v'
}

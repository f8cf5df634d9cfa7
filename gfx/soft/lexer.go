// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package soft

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	line int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of file"
	}
	return t.text
}

// compileError is a diagnostic in the style of GLSL compiler info logs.
type compileError struct {
	line int
	near string
	msg  string
}

func (e *compileError) Error() string {
	return fmt.Sprintf("ERROR: 0:%d: '%s' : %s", e.line, e.near, e.msg)
}

func errorAt(t token, format string, args ...interface{}) *compileError {
	return &compileError{line: t.line, near: t.String(), msg: fmt.Sprintf(format, args...)}
}

// two-character operators, checked before single characters
var operators = []string{"+=", "-=", "*=", "/=", "==", "!=", "<=", ">=", "&&", "||", "++", "--"}

// lex splits source into tokens. Preprocessor directives and
// comments are dropped.
func lex(src string) ([]token, error) {
	var (
		toks []token
		line = 1
		i    = 0
	)
	atLineStart := true
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
			atLineStart = true
			continue
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			i++
			continue
		case c == '#' && atLineStart:
			for i < len(src) && src[i] != '\n' {
				// line continuation keeps the directive going
				if src[i] == '\\' && i+1 < len(src) && src[i+1] == '\n' {
					line++
					i++
				}
				i++
			}
			continue
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			start := line
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, &compileError{line: start, near: "/*", msg: "unterminated comment"}
			}
			line += strings.Count(src[i:i+2+end], "\n")
			i += end + 4
			continue
		}
		atLineStart = false

		switch {
		case isIdentStart(c):
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: src[i:j], line: line})
			i = j
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			j := scanNumber(src, i)
			toks = append(toks, token{kind: tokNumber, text: src[i:j], line: line})
			i = j
		default:
			op := string(c)
			for _, o := range operators {
				if strings.HasPrefix(src[i:], o) {
					op = o
					break
				}
			}
			if !strings.Contains("+-*/=(){}[];,.<>!&|?:", string(c)) {
				return nil, &compileError{line: line, near: string(c), msg: "invalid character"}
			}
			toks = append(toks, token{kind: tokPunct, text: op, line: line})
			i += len(op)
		}
	}
	toks = append(toks, token{kind: tokEOF, line: line})
	return toks, nil
}

func scanNumber(src string, i int) int {
	j := i
	for j < len(src) && isDigit(src[j]) {
		j++
	}
	if j < len(src) && src[j] == '.' {
		j++
		for j < len(src) && isDigit(src[j]) {
			j++
		}
	}
	if j < len(src) && (src[j] == 'e' || src[j] == 'E') {
		k := j + 1
		if k < len(src) && (src[k] == '+' || src[k] == '-') {
			k++
		}
		if k < len(src) && isDigit(src[k]) {
			for k < len(src) && isDigit(src[k]) {
				k++
			}
			j = k
		}
	}
	return j
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

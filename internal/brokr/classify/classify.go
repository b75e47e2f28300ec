// Package classify assigns a coarse kind to a SQL statement: read, write, or
// destructive. It is intentionally not a SQL parser; it strips leading
// comments, unwraps an optional WITH prefix, and inspects the leading
// keyword. Anything it does not recognize is treated as destructive.
package classify

import (
	"strings"

	"github.com/vaibhaw-/BrokR/internal/brokr/dberr"
)

// Kind is the coarse classification of a statement.
type Kind string

const (
	KindRead        Kind = "read"
	KindWrite       Kind = "write"
	KindDestructive Kind = "destructive"
)

var keywordKinds = map[string]Kind{
	"SELECT": KindRead,

	"INSERT": KindWrite,
	"UPDATE": KindWrite,

	"DELETE":   KindDestructive,
	"DROP":     KindDestructive,
	"TRUNCATE": KindDestructive,
	"ALTER":    KindDestructive,
	"CREATE":   KindDestructive,
}

// Classify returns the kind of a single SQL statement. It fails with a
// validation error when the payload is empty or contains more than one
// top-level statement, so a read-looking payload cannot smuggle a second
// statement past the permission check. Same input, same result, always.
func Classify(sql string) (Kind, error) {
	stripped := stripLeading(sql)
	if stripped == "" {
		return "", dberr.New(dberr.KindValidation, "empty statement")
	}
	if err := rejectMultiStatement(stripped); err != nil {
		return "", err
	}

	word := leadingKeyword(stripped)
	if word == "WITH" {
		word = verbAfterCTE(stripped)
	}
	if kind, ok := keywordKinds[word]; ok {
		return kind, nil
	}
	// Unknown statements are treated as most dangerous.
	return KindDestructive, nil
}

// stripLeading removes leading whitespace, -- line comments, and /* */ block
// comments so the first real keyword is at the front.
func stripLeading(sql string) string {
	rest := strings.TrimSpace(sql)
	for rest != "" {
		if strings.HasPrefix(rest, "--") {
			if i := strings.IndexByte(rest, '\n'); i >= 0 {
				rest = strings.TrimSpace(rest[i+1:])
				continue
			}
			return ""
		}
		if strings.HasPrefix(rest, "/*") {
			end := strings.Index(rest[2:], "*/")
			if end < 0 {
				return ""
			}
			rest = strings.TrimSpace(rest[2+end+2:])
			continue
		}
		break
	}
	return rest
}

func leadingKeyword(sql string) string {
	end := 0
	for end < len(sql) && !isSpace(sql[end]) && sql[end] != '(' && sql[end] != ';' {
		end++
	}
	return strings.ToUpper(sql[:end])
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// scanState tracks quoting/comment context while walking statement text.
type scanState int

const (
	stateCode scanState = iota
	stateSingle
	stateDouble
	stateBacktick
	stateLineComment
	stateBlockComment
)

// rejectMultiStatement scans for a statement separator outside string and
// comment context. A trailing separator followed only by whitespace or
// comments is allowed.
func rejectMultiStatement(sql string) error {
	state := stateCode
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch state {
		case stateCode:
			switch {
			case c == '\'':
				state = stateSingle
			case c == '"':
				state = stateDouble
			case c == '`':
				state = stateBacktick
			case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
				state = stateLineComment
				i++
			case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
				state = stateBlockComment
				i++
			case c == ';':
				if stripLeading(sql[i+1:]) != "" {
					return dberr.New(dberr.KindValidation, "multiple statements in one payload")
				}
				return nil
			}
		case stateSingle:
			if c == '\\' && i+1 < len(sql) {
				i++
			} else if c == '\'' {
				// '' inside a string is an escaped quote, not a terminator.
				if i+1 < len(sql) && sql[i+1] == '\'' {
					i++
				} else {
					state = stateCode
				}
			}
		case stateDouble:
			if c == '\\' && i+1 < len(sql) {
				i++
			} else if c == '"' {
				state = stateCode
			}
		case stateBacktick:
			if c == '`' {
				state = stateCode
			}
		case stateLineComment:
			if c == '\n' {
				state = stateCode
			}
		case stateBlockComment:
			if c == '*' && i+1 < len(sql) && sql[i+1] == '/' {
				state = stateCode
				i++
			}
		}
	}
	return nil
}

// verbAfterCTE finds the statement verb that follows a WITH prefix. It walks
// words at parenthesis depth zero (CTE bodies live inside parens) and returns
// the first recognized verb, or "" when the text never leaves the CTE list.
func verbAfterCTE(sql string) string {
	state := stateCode
	depth := 0
	wordStart := -1
	sawWith := false
	for i := 0; i <= len(sql); i++ {
		var c byte
		if i < len(sql) {
			c = sql[i]
		} else {
			c = ' '
		}
		if state != stateCode {
			switch state {
			case stateSingle:
				if c == '\'' {
					state = stateCode
				}
			case stateDouble:
				if c == '"' {
					state = stateCode
				}
			case stateBacktick:
				if c == '`' {
					state = stateCode
				}
			case stateLineComment:
				if c == '\n' {
					state = stateCode
				}
			case stateBlockComment:
				if c == '*' && i+1 < len(sql) && sql[i+1] == '/' {
					state = stateCode
					i++
				}
			}
			continue
		}

		isWordByte := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if isWordByte {
			if wordStart < 0 {
				wordStart = i
			}
			continue
		}
		if wordStart >= 0 && depth == 0 {
			word := strings.ToUpper(sql[wordStart:i])
			if !sawWith {
				if word == "WITH" {
					sawWith = true
				}
			} else if word != "RECURSIVE" && word != "AS" {
				if _, ok := keywordKinds[word]; ok {
					return word
				}
			}
		}
		wordStart = -1

		switch c {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '\'':
			state = stateSingle
		case '"':
			state = stateDouble
		case '`':
			state = stateBacktick
		case '-':
			if i+1 < len(sql) && sql[i+1] == '-' {
				state = stateLineComment
				i++
			}
		case '/':
			if i+1 < len(sql) && sql[i+1] == '*' {
				state = stateBlockComment
				i++
			}
		}
	}
	return ""
}

package connector

import (
	"fmt"
	"sort"

	"github.com/vaibhaw-/BrokR/internal/brokr/dberr"
)

// scanState tracks quoting/comment context while rewriting parameters.
type scanState int

const (
	stateCode scanState = iota
	stateSingle
	stateDouble
	stateBacktick
	stateLineComment
	stateBlockComment
)

// placeholderStyle is the parameter-binding convention of an engine driver.
type placeholderStyle int

const (
	placeholderQuestion placeholderStyle = iota // mysql, mariadb, sqlite: ?
	placeholderDollar                           // postgres, kingbase: $1, $2, ...
)

// bindNamed rewrites :name parameters into the driver's placeholder style
// and returns the positional argument list. Names are only recognized
// outside string literals and comments, and a double colon (postgres cast)
// is left alone. Referencing a parameter that was not supplied, or supplying
// one the statement never uses, is a validation error.
func bindNamed(sql string, params map[string]interface{}, style placeholderStyle) (string, []interface{}, error) {
	var (
		out  []byte
		args []interface{}
		used = make(map[string]bool, len(params))
	)

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
			case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
				state = stateBlockComment
			case c == ':':
				if i+1 < len(sql) && sql[i+1] == ':' {
					// cast, emit both colons and move on
					out = append(out, ':', ':')
					i++
					continue
				}
				name := paramName(sql[i+1:])
				if name == "" {
					break
				}
				val, ok := params[name]
				if !ok {
					return "", nil, dberr.New(dberr.KindValidation, "statement references parameter %q which was not supplied", name)
				}
				used[name] = true
				args = append(args, val)
				switch style {
				case placeholderDollar:
					out = append(out, fmt.Sprintf("$%d", len(args))...)
				default:
					out = append(out, '?')
				}
				i += len(name)
				continue
			}
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
				out = append(out, '*', '/')
				i++
				state = stateCode
				continue
			}
		}
		out = append(out, c)
	}

	if len(used) != len(params) {
		var unused []string
		for name := range params {
			if !used[name] {
				unused = append(unused, name)
			}
		}
		sort.Strings(unused)
		return "", nil, dberr.New(dberr.KindValidation, "unused parameters: %v", unused)
	}

	return string(out), args, nil
}

func paramName(s string) string {
	end := 0
	for end < len(s) {
		c := s[end]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9' && end > 0) {
			end++
			continue
		}
		break
	}
	return s[:end]
}

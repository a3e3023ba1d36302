package migrator

import (
	"strings"
)

// SplitStatements splits a SQL script into individual statements on
// top-level semicolons. Semicolons inside single-quoted strings,
// double-quoted identifiers, line and block comments, and PostgreSQL
// dollar-quoted bodies ($$...$$ or $tag$...$tag$) don't end a statement,
// and neither do semicolons within the BEGIN ... END body of a
// CREATE TRIGGER statement. Fragments that contain only whitespace and
// comments are dropped. The returned statements don't include the
// terminating semicolon.
func SplitStatements(script string) []string {
	var (
		stmts   []string
		start   int
		hasCode bool // current fragment contains something other than comments
		words   []string
		depth   int // BEGIN/CASE ... END nesting within a trigger body
	)

	flush := func(end int) {
		if hasCode {
			if stmt := strings.TrimSpace(script[start:end]); stmt != "" {
				stmts = append(stmts, stmt)
			}
		}
		hasCode = false
		words = words[:0]
		depth = 0
	}

	for i := 0; i < len(script); {
		c := script[i]
		switch {
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			end := strings.IndexByte(script[i:], '\n')
			if end == -1 {
				i = len(script)
			} else {
				i += end + 1
			}
		case c == '/' && i+1 < len(script) && script[i+1] == '*':
			end := strings.Index(script[i+2:], "*/")
			if end == -1 {
				i = len(script)
			} else {
				i += end + 4
			}
		case c == '\'' || c == '"':
			hasCode = true
			i = skipQuoted(script, i, c)
		case c == '$':
			hasCode = true
			if tag, ok := dollarTag(script, i); ok {
				end := strings.Index(script[i+len(tag):], tag)
				if end == -1 {
					i = len(script)
				} else {
					i += len(tag) + end + len(tag)
				}
			} else {
				i++
			}
		case c == ';':
			i++
			if depth > 0 {
				continue
			}
			flush(i - 1)
			start = i
		case isWordStart(c) && (i == 0 || !isWordChar(script[i-1])):
			hasCode = true
			j := i + 1
			for j < len(script) && isWordChar(script[j]) {
				j++
			}
			word := strings.ToUpper(script[i:j])
			if len(words) < 4 {
				words = append(words, word)
			}
			if isCreateTrigger(words) {
				switch {
				case word == "BEGIN", word == "CASE" && depth > 0:
					depth++
				case word == "END" && depth > 0:
					depth--
				}
			}
			i = j
		default:
			if !isSpace(c) {
				hasCode = true
			}
			i++
		}
	}
	flush(len(script))

	return stmts
}

// skipQuoted returns the index right after the quoted section starting at i.
// A doubled quote character inside the section is an escaped quote.
func skipQuoted(s string, i int, quote byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] != quote {
			continue
		}
		if j+1 < len(s) && s[j+1] == quote {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

// dollarTag returns the dollar-quote tag starting at i, e.g. "$$" or
// "$body$", if there is one.
func dollarTag(s string, i int) (string, bool) {
	for j := i + 1; j < len(s); j++ {
		c := s[j]
		switch {
		case c == '$':
			return s[i : j+1], true
		case c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z'):
		case '0' <= c && c <= '9':
			// Tags can't start with a digit, otherwise this is a positional
			// parameter like $1.
			if j == i+1 {
				return "", false
			}
		default:
			return "", false
		}
	}
	return "", false
}

// isCreateTrigger reports whether the leading words of a statement are
// CREATE [TEMP | TEMPORARY] TRIGGER.
func isCreateTrigger(words []string) bool {
	if len(words) < 2 || words[0] != "CREATE" {
		return false
	}
	if words[1] == "TEMP" || words[1] == "TEMPORARY" {
		return len(words) > 2 && words[2] == "TRIGGER"
	}
	return words[1] == "TRIGGER"
}

func isWordStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isWordChar(c byte) bool {
	return isWordStart(c) || ('0' <= c && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// hasStatements reports whether the script contains anything besides
// whitespace and comments.
func hasStatements(script string) bool {
	return len(SplitStatements(script)) > 0
}

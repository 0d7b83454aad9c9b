package transform

import (
	"strings"

	"github.com/signalize/signalize/internal/dartast"
)

func wordStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func wordByte(c byte) bool {
	return wordStart(c) || (c >= '0' && c <= '9')
}

func word(src []byte, i int) (string, int) {
	j := i
	for j < len(src) && wordByte(src[j]) {
		j++
	}
	return string(src[i:j]), j
}

func spaceEnd(src []byte, i int) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\t' || src[i] == '\r' || src[i] == '\n') {
		i++
	}
	return i
}

var declWords = map[string]bool{"var": true, "final": true, "const": true, "late": true}

func prevWordIsDecl(src []byte, i int) bool {
	for i > 0 && (src[i-1] == ' ' || src[i-1] == '\t') {
		i--
	}
	end := i
	for i > 0 && wordByte(src[i-1]) {
		i--
	}
	return declWords[string(src[i:end])]
}

// containsStmt reports a word-bounded occurrence of stmt in text.
func containsStmt(text, stmt string) bool {
	from := 0
	for {
		idx := strings.Index(text[from:], stmt)
		if idx < 0 {
			return false
		}
		abs := from + idx
		if abs == 0 || !wordByte(text[abs-1]) {
			return true
		}
		from = abs + 1
	}
}

// stmtIndent is the leading whitespace of the line containing at.
func stmtIndent(text string, at int) string {
	ls := strings.LastIndexByte(text[:at], '\n') + 1
	j := ls
	for j < len(text) && (text[j] == ' ' || text[j] == '\t') {
		j++
	}
	if j > ls {
		return text[ls:j]
	}
	return "    "
}

// indentAt is the leading whitespace of the source line containing pos.
func indentAt(u *dartast.Unit, pos int) string {
	src := u.Src
	ls := pos
	for ls > 0 && src[ls-1] != '\n' {
		ls--
	}
	j := ls
	for j < pos && (src[j] == ' ' || src[j] == '\t') {
		j++
	}
	return string(src[ls:j])
}

// leadText is the comment block preceding a member, re-terminated so the
// member text that follows lands indented on its own line.
func leadText(u *dartast.Unit, m dartast.Member) string {
	if m.Lead >= m.Start {
		return ""
	}
	return strings.TrimRight(u.Text(m.Lead, m.Start), " \t\n") + "\n  "
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

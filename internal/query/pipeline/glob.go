package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

// compileGlob turns a shell-style pattern into an anchored regexp. * and ? are wildcards,
// [seq] and [!seq] are character classes, and everything else matches itself, backslash included.
// A [ without a closing ] is literal.
func compileGlob(pattern string) *regexp.Regexp {
	rs := []rune(pattern)
	var b strings.Builder
	b.WriteString(`^(?s:`)
	for i := 0; i < len(rs); i++ {
		switch r := rs[i]; r {
		case '*':
			b.WriteString(`.*`)
			for i+1 < len(rs) && rs[i+1] == '*' {
				i++
			}
		case '?':
			b.WriteByte('.')
		case '[':
			class, end, ok := globClass(rs, i)
			if !ok {
				b.WriteString(`\[`)
				continue
			}
			b.WriteString(class)
			i = end
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`)$`)
	return regexp.MustCompile(b.String())
}

// globClass translates the class opening at rs[start]. end is the index of its closing ].
// A ] right after [ or [! belongs to the set. Ranges with lo > hi are empty.
func globClass(rs []rune, start int) (class string, end int, ok bool) {
	j := start + 1
	if j < len(rs) && rs[j] == '!' {
		j++
	}
	if j < len(rs) && rs[j] == ']' {
		j++
	}
	for j < len(rs) && rs[j] != ']' {
		j++
	}
	if j >= len(rs) {
		return "", 0, false
	}

	body := rs[start+1 : j]
	negate := len(body) > 0 && body[0] == '!'
	if negate {
		body = body[1:]
	}
	var set strings.Builder
	for k := 0; k < len(body); k++ {
		if k+2 < len(body) && body[k+1] == '-' {
			if lo, hi := body[k], body[k+2]; lo <= hi {
				fmt.Fprintf(&set, `\x{%x}-\x{%x}`, lo, hi)
			}
			k += 2
			continue
		}
		fmt.Fprintf(&set, `\x{%x}`, body[k])
	}

	switch {
	case set.Len() == 0 && negate:
		return ".", j, true
	case set.Len() == 0:
		return `[^\x{0}-\x{10ffff}]`, j, true
	case negate:
		return "[^" + set.String() + "]", j, true
	default:
		return "[" + set.String() + "]", j, true
	}
}

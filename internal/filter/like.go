package filter

import (
	"fmt"
	"strings"
)

// MatchType classifies a like pattern by where its wildcards sit.
type MatchType int

const (
	MatchExact MatchType = iota
	MatchContains
	MatchStartsWith
	MatchEndsWith
)

func (m MatchType) String() string {
	switch m {
	case MatchContains:
		return "CONTAINS"
	case MatchStartsWith:
		return "STARTS_WITH"
	case MatchEndsWith:
		return "ENDS_WITH"
	default:
		return "EXACT"
	}
}

// Wildcard is the canonical multi-character wildcard. Relational '%' input is
// rewritten to it on construction.
const Wildcard = '*'

// Like is a case-insensitive pattern match.
type Like struct {
	base
	// Pattern is the normalized pattern using '*' as wildcard.
	Pattern string
	// Term is Pattern with its leading and trailing wildcards removed.
	Term string
	Match MatchType
}

// NewLike builds a pattern predicate. Both '*' and '%' are accepted as
// wildcards. With autoWildcard set, a pattern without wildcards becomes a
// contains-match.
func NewLike(field, pattern string, autoWildcard bool) *Like {
	p := strings.ReplaceAll(pattern, "%", string(Wildcard))
	lead := strings.HasPrefix(p, "*")
	trail := len(p) > 1 && strings.HasSuffix(p, "*")
	term := strings.Trim(p, "*")

	var m MatchType
	switch {
	case lead && trail, p == "*":
		m = MatchContains
	case trail:
		m = MatchStartsWith
	case lead:
		m = MatchEndsWith
	case autoWildcard:
		m = MatchContains
		p = "*" + p + "*"
	default:
		m = MatchExact
	}
	return &Like{base: leaf(field), Pattern: p, Term: term, Match: m}
}

func (p *Like) String() string {
	return fmt.Sprintf("%s like %q (%s)", p.field, p.Pattern, p.Match)
}

// SQLPattern returns the pattern in LIKE syntax, escaping the single-character
// wildcard and the escape character.
func (p *Like) SQLPattern() string {
	var b strings.Builder
	for _, r := range p.Pattern {
		switch r {
		case Wildcard:
			b.WriteByte('%')
		case '_', '\\', '%':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MatchString reports whether s matches the pattern, ignoring case.
func (p *Like) MatchString(s string) bool {
	s = strings.ToLower(s)
	term := strings.ToLower(p.Term)
	if strings.ContainsRune(term, Wildcard) {
		return glob(strings.ToLower(p.Pattern), s)
	}
	switch p.Match {
	case MatchContains:
		return strings.Contains(s, term)
	case MatchStartsWith:
		return strings.HasPrefix(s, term)
	case MatchEndsWith:
		return strings.HasSuffix(s, term)
	default:
		return s == term
	}
}

// glob matches s against a pattern where '*' matches any run of characters.
func glob(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		i := strings.Index(s, part)
		if i < 0 {
			return false
		}
		s = s[i+len(part):]
	}
	return strings.HasSuffix(s, last)
}

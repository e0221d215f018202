package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLike_MatchType(t *testing.T) {
	tests := []struct {
		pattern string
		auto    bool
		want    MatchType
		term    string
		norm    string
	}{
		{"abc", false, MatchExact, "abc", "abc"},
		{"abc", true, MatchContains, "abc", "*abc*"},
		{"abc*", false, MatchStartsWith, "abc", "abc*"},
		{"abc%", false, MatchStartsWith, "abc", "abc*"},
		{"*abc", false, MatchEndsWith, "abc", "*abc"},
		{"%abc", true, MatchEndsWith, "abc", "*abc"},
		{"*abc*", false, MatchContains, "abc", "*abc*"},
		{"%abc%", false, MatchContains, "abc", "*abc*"},
		{"*", false, MatchContains, "", "*"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			l := NewLike("name", tt.pattern, tt.auto)
			assert.Equal(t, tt.want, l.Match)
			assert.Equal(t, tt.term, l.Term)
			assert.Equal(t, tt.norm, l.Pattern)
		})
	}
}

func TestLike_WildcardStylesAgree(t *testing.T) {
	star := NewLike("name", "abc*", false)
	pct := NewLike("name", "abc%", false)
	assert.Equal(t, MatchStartsWith, star.Match)
	assert.Equal(t, star.Match, pct.Match)

	for _, s := range []string{"abc", "abcdef", "xabc", "ABCdef"} {
		assert.Equal(t, star.MatchString(s), pct.MatchString(s), "input %q", s)
	}
	assert.True(t, star.MatchString("abc"))
	assert.True(t, star.MatchString("abcdef"))
	assert.False(t, star.MatchString("xabc"))
}

func TestLike_MatchString(t *testing.T) {
	tests := []struct {
		pattern string
		input   string
		want    bool
	}{
		{"abc", "abc", true},
		{"abc", "ABC", true},
		{"abc", "abcd", false},
		{"*bc", "abc", true},
		{"*bc", "bca", false},
		{"*b*", "abc", true},
		{"a*c", "abbbc", true},
		{"a*c", "abcd", false},
		{"a*b*c", "axxbyyc", true},
	}
	for _, tt := range tests {
		l := NewLike("f", tt.pattern, false)
		assert.Equal(t, tt.want, l.MatchString(tt.input), "%q ~ %q", tt.input, tt.pattern)
	}
}

func TestLike_SQLPattern(t *testing.T) {
	assert.Equal(t, "abc%", NewLike("f", "abc*", false).SQLPattern())
	assert.Equal(t, "%a\\_b%", NewLike("f", "a_b", true).SQLPattern())
}

package search

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Matches(t *testing.T) {
	tests := []struct {
		name  string
		term  string
		title string
		want  bool
	}{
		{name: "empty term matches all", term: "", title: "Anything", want: true},
		{name: "blank term matches all", term: "   ", title: "Anything", want: true},
		{name: "case insensitive", term: "abc", title: "ABC Canyon", want: true},
		{name: "substring", term: "creek", title: "Canyon Creek", want: true},
		{name: "no match", term: "lake", title: "Canyon Creek", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTitleFilter(tt.term).Matches(tt.title))
		})
	}
}

func TestFilter_EmptyEqualsAbsent(t *testing.T) {
	assert.Equal(t, Filter{}, NewTitleFilter(""))
	assert.True(t, NewTitleFilter(" ").IsEmpty())
}

func TestFilter_RegexPatternIsLiteral(t *testing.T) {
	f := NewTitleFilter("a.b(")
	re := regexp.MustCompile("(?i)" + f.RegexPattern())
	assert.True(t, re.MatchString("site A.B( north"))
	assert.False(t, re.MatchString("axb("))
}

func TestFilter_LikePatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%50\% off\_now%`, NewTitleFilter("50% off_now").LikePattern())
	assert.Equal(t, "%creek%", NewTitleFilter("creek").LikePattern())
}

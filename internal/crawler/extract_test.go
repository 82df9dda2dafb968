package crawler

import (
	"slices"
	"testing"
)

// TestExtractLinks tests anchor extraction and the absolute-prefix filter.
func TestExtractLinks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want []string
	}{
		{
			name: "keeps absolute links in document order",
			html: `<a href="http://a/">x</a><a href="/rel">y</a><a href="http://b/">z</a>`,
			want: []string{"http://a/", "http://b/"},
		},
		{
			name: "drops fragment mailto and javascript hrefs",
			html: `<a href="#top">t</a><a href="mailto:a@b.c">m</a><a href="javascript:void(0)">j</a><a href="https://ok/">ok</a>`,
			want: []string{"https://ok/"},
		},
		{
			name: "skips anchors without href",
			html: `<a name="anchor">n</a><a href="http://x/">x</a>`,
			want: []string{"http://x/"},
		},
		{
			name: "keeps duplicates",
			html: `<a href="http://x/">1</a><a href="http://x/">2</a>`,
			want: []string{"http://x/", "http://x/"},
		},
		{
			name: "ignores href on non-anchor elements",
			html: `<link href="http://style/"><area href="http://area/"><a href="http://a/">a</a>`,
			want: []string{"http://a/"},
		},
		{
			name: "finds nested anchors in full documents",
			html: `<html><head><title>t</title></head><body><div><p><a href="http://deep/">d</a></p></div></body></html>`,
			want: []string{"http://deep/"},
		},
		{
			name: "prefix match is literal and case sensitive",
			html: `<a href="HTTP://upper/">u</a><a href="httpfoo">f</a><a href=" http://space/">s</a>`,
			want: []string{"httpfoo"},
		},
		{
			name: "malformed markup is best effort",
			html: `<div><a href="http://a/">unclosed<a href="http://b/"><p></div>`,
			want: []string{"http://a/", "http://b/"},
		},
		{
			name: "empty input yields no links",
			html: ``,
			want: []string{},
		},
		{
			name: "plain text yields no links",
			html: `not html at all http://inline/`,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ExtractLinks(tt.html)
			if got == nil {
				t.Fatal("expected non-nil slice")
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

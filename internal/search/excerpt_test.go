package search

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		limit   int
		want    string
		wantCut bool
	}{
		{"shorter", "hello", 10, "hello", false},
		{"exact", "hello", 5, "hello", false},
		{"cut", "hello world", 5, "hello", true},
		{"multibyte", "التمريض", 3, "الت", true},
		{"zero", "abc", 0, "", true},
		{"empty", "", 3, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cut := Truncate(tt.text, tt.limit)
			if got != tt.want || cut != tt.wantCut {
				t.Errorf("Truncate(%q, %d) = (%q, %v), want (%q, %v)", tt.text, tt.limit, got, cut, tt.want, tt.wantCut)
			}
		})
	}
}

func TestHighlighterApply(t *testing.T) {
	tests := []struct {
		name string
		term string
		text string
		want string
	}{
		{
			name: "case preserved",
			term: "nursing",
			text: "Bachelor of Nursing and NURSING practice",
			want: `Bachelor of <span class="highlight">Nursing</span> and <span class="highlight">NURSING</span> practice`,
		},
		{
			name: "metacharacters are literal",
			term: "c++ (intro)",
			text: "Learn C++ (Intro) today",
			want: `Learn <span class="highlight">C++ (Intro)</span> today`,
		},
		{
			name: "markup escaped",
			term: "a&b",
			text: "<b>A&B</b> partners",
			want: `&lt;b&gt;<span class="highlight">A&amp;B</span>&lt;/b&gt; partners`,
		},
		{
			name: "arabic",
			term: "التمريض",
			text: "كلية التمريض",
			want: `كلية <span class="highlight">التمريض</span>`,
		},
		{
			name: "no occurrence",
			term: "zzz",
			text: "plain text",
			want: "plain text",
		},
		{
			name: "empty term",
			term: "",
			text: "plain <text>",
			want: "plain &lt;text&gt;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewHighlighter(tt.term, "highlight").Apply(tt.text)
			if got != tt.want {
				t.Errorf("Apply() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExcerptLength(t *testing.T) {
	hl := NewHighlighter("zzz", "highlight")

	long := strings.Repeat("abcde", 40) // 200 characters
	got := hl.Excerpt(long, 150)
	if !strings.HasSuffix(got, Ellipsis) {
		t.Fatalf("expected ellipsis, got %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 153 {
		t.Errorf("excerpt length = %d, want 153", n)
	}
	if got[:150] != long[:150] {
		t.Errorf("excerpt does not start with the first 150 characters")
	}

	short := "Apply for the Bachelor of Nursing programme today."
	if got := hl.Excerpt(short, 150); got != short {
		t.Errorf("short text should be verbatim, got %q", got)
	}
}

func TestExcerptHighlightsOnlyWindow(t *testing.T) {
	text := strings.Repeat("x", 148) + "Nursing"
	got := NewHighlighter("nursing", "highlight").Excerpt(text, 150)

	// the term straddles the cut and is not highlighted
	want := strings.Repeat("x", 148) + "Nu" + Ellipsis
	if got != want {
		t.Errorf("Excerpt() = %q, want %q", got, want)
	}
}

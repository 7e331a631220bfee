package textutil

import "testing"

func TestExpandTabs(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a\tb", "a   b"},
		{"\tx", "    x"},
		{"abcd\te", "abcd    e"},
		{"no tabs", "no tabs"},
		{"日\tx", "日  x"},
	}
	for _, tt := range tests {
		if got := ExpandTabs(tt.in, 4); got != tt.want {
			t.Fatalf("ExpandTabs(%q)=%q want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayWidth(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"abc", 3},
		{"日本", 4},
		{"é", 1},
		{"", 0},
	}
	for _, tt := range tests {
		if got := DisplayWidth(tt.text); got != tt.want {
			t.Fatalf("DisplayWidth(%q)=%d want %d", tt.text, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("abcdefghij", 5); got != "abcd…" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("abcdefghij", 0); got != "abcdefghij" {
		t.Fatalf("zero width must not truncate, got %q", got)
	}
	if got := DisplayWidth(Truncate("日本語テキスト", 7)); got > 7 {
		t.Fatalf("truncated wide text is %d cells", got)
	}
}

func TestLine(t *testing.T) {
	if got := Line("x\ty\x1b", 0); got != "x   y?" {
		t.Fatalf("unexpected %q", got)
	}
}

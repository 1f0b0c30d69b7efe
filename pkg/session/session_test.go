package session

import (
	"regexp"
	"testing"

	"golang.org/x/net/html"
)

func TestGenerateSessionID(t *testing.T) {
	id := GenerateSessionID()
	if !regexp.MustCompile(`^[0-9a-f]{8}$`).MatchString(id) {
		t.Errorf("GenerateSessionID() = %q, want 8 hex chars", id)
	}
	if id == GenerateSessionID() {
		t.Errorf("GenerateSessionID() returned the same id twice")
	}
}

func TestAnchorIsIdempotent(t *testing.T) {
	s := New("")
	assigned := 0
	s.OnAssign = func(*html.Node) { assigned++ }

	n := &html.Node{Type: html.ElementNode, Data: "li"}
	first := s.Anchor(n)
	second := s.Anchor(n)

	if first != second {
		t.Errorf("Anchor() = %q then %q, want stable value", first, second)
	}
	if assigned != 1 {
		t.Errorf("OnAssign ran %d times, want 1", assigned)
	}
	if want := s.ID + "-1"; first != want {
		t.Errorf("Anchor() = %q, want %q", first, want)
	}
}

func TestAnchorKeepsForeignValue(t *testing.T) {
	s := New("data-locator-anchor")
	n := &html.Node{Type: html.ElementNode, Data: "li", Attr: []html.Attribute{{Key: "data-locator-anchor", Val: "abc-z"}}}
	if got := s.Anchor(n); got != "abc-z" {
		t.Errorf("Anchor() = %q, want existing value", got)
	}
}

func TestExpressions(t *testing.T) {
	s := &Session{ID: "deadbeef", Attr: "data-locator-anchor"}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"css", s.CSS("deadbeef-1"), `[data-locator-anchor="deadbeef-1"]`},
		{"xpath", s.XPath("deadbeef-1"), "//*[@data-locator-anchor='deadbeef-1']"},
		{"union", s.UnionXPath([]string{"a", "b"}), "//*[@data-locator-anchor='a' or @data-locator-anchor='b']"},
		{"empty union", s.UnionXPath(nil), ""},
		{"step", s.Step("a"), "*[@data-locator-anchor='a']"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

package session

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"github.com/google/uuid"
	"golang.org/x/net/html"
)

// Session hands out FallbackAnchor tokens for one engine lifetime.
// Format: {session}-{counter base36}, session being the first 8 hex
// characters of a UUIDv4.
type Session struct {
	ID   string
	Attr string

	// OnAssign runs after a new anchor is written to a node.
	OnAssign func(n *html.Node)

	mu      sync.Mutex
	counter uint64
}

// New creates a session writing anchors into attr.
func New(attr string) *Session {
	if attr == "" {
		attr = models.DefaultAnchorAttribute
	}
	return &Session{ID: GenerateSessionID(), Attr: attr}
}

// GenerateSessionID returns 8 random hex characters.
func GenerateSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Anchor returns the anchor value of n, assigning a fresh one when n has
// none. Existing values are never replaced.
func (s *Session) Anchor(n *html.Node) string {
	if v, ok := s.Value(n); ok {
		return v
	}
	s.mu.Lock()
	s.counter++
	v := s.ID + "-" + strconv.FormatUint(s.counter, 36)
	s.mu.Unlock()

	dom.SetAttr(n, s.Attr, v)
	if s.OnAssign != nil {
		s.OnAssign(n)
	}
	return v
}

// Value returns the anchor already carried by n.
func (s *Session) Value(n *html.Node) (string, bool) {
	if !dom.HasAttr(n, s.Attr) {
		return "", false
	}
	v := dom.Attr(n, s.Attr)
	return v, v != ""
}

// CSS returns a selector matching the anchored element.
func (s *Session) CSS(value string) string {
	return fmt.Sprintf(`[%s="%s"]`, s.Attr, value)
}

// XPath returns an absolute XPath matching the anchored element.
func (s *Session) XPath(value string) string {
	return fmt.Sprintf("//*[@%s='%s']", s.Attr, value)
}

// UnionXPath matches any of the anchored elements.
func (s *Session) UnionXPath(values []string) string {
	if len(values) == 0 {
		return ""
	}
	conds := make([]string, len(values))
	for i, v := range values {
		conds[i] = fmt.Sprintf("@%s='%s'", s.Attr, v)
	}
	return "//*[" + strings.Join(conds, " or ") + "]"
}

// Step returns the predicate form used when an anchor opens a longer path.
func (s *Session) Step(value string) string {
	return fmt.Sprintf("*[@%s='%s']", s.Attr, value)
}

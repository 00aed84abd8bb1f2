package tier

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/strataml/strata/pkg/types"
)

// DenyList rejects content that must never be persisted to long-term memory.
// It matches case-insensitive literal substrings plus optional glob patterns
// (e.g. "*scratch note*").
type DenyList struct {
	literals []string
	globs    []glob.Glob
}

// DefaultDenyList returns the built-in transient-content markers.
func DefaultDenyList() *DenyList {
	dl, _ := NewDenyList(types.DoNotStorePatterns, nil)
	return dl
}

// NewDenyList builds a deny-list from literal substrings and glob patterns.
// Literals are lowercased; glob patterns that fail to compile are an error.
func NewDenyList(literals, globPatterns []string) (*DenyList, error) {
	dl := &DenyList{}
	for _, l := range literals {
		dl.literals = append(dl.literals, strings.ToLower(l))
	}
	for _, p := range globPatterns {
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, fmt.Errorf("denylist: bad pattern %q: %w", p, err)
		}
		dl.globs = append(dl.globs, g)
	}
	return dl, nil
}

// Blocked reports whether content matches any deny-list entry.
func (d *DenyList) Blocked(content string) bool {
	lower := strings.ToLower(content)
	for _, l := range d.literals {
		if strings.Contains(lower, l) {
			return true
		}
	}
	for _, g := range d.globs {
		if g.Match(lower) {
			return true
		}
	}
	return false
}

package cover

import (
	"os"
	"strings"

	"sharpcover/internal/cil"
)

// sourceCache lazily loads source files so line-text exclusions can be
// compared against what the developer actually wrote. A file that cannot
// be read contributes empty lines, which never match an exclusion.
type sourceCache struct {
	files map[string][]string
}

func newSourceCache() *sourceCache {
	return &sourceCache{files: make(map[string][]string)}
}

// line returns the source text at the sequence point, or "" when the file
// or line is unavailable.
func (c *sourceCache) line(sp *cil.SeqPoint) string {
	lines, ok := c.files[sp.File]
	if !ok {
		lines = c.load(sp.File)
		c.files[sp.File] = lines
	}
	// Sequence point lines are 1-based.
	idx := int(sp.Line) - 1
	if idx < 0 || idx >= len(lines) {
		return ""
	}
	return lines[idx]
}

func (c *sourceCache) load(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return strings.Split(string(data), "\n")
}

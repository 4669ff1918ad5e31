package hitlog

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Set is a union of observed probe indices.
type Set map[uint32]struct{}

// Has reports whether the probe index was observed.
func (s Set) Has(index uint32) bool {
	_, ok := s[index]
	return ok
}

// ReadHits unions every hit-output file in dir matching the destination
// prefix into one set and returns the matched file paths. A trailing
// partial record in a file is ignored, not an error; an unreadable file
// is (the check phase must not silently under-report hits).
func ReadHits(dir, prefix string) (Set, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("scan hit outputs in %q: %w", dir, err)
	}

	hits := make(Set)
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix+".") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read hit output %q: %w", path, err)
		}
		for i := 0; i+4 <= len(data); i += 4 {
			hits[binary.LittleEndian.Uint32(data[i:i+4])] = struct{}{}
		}
		files = append(files, path)
	}
	return hits, files, nil
}

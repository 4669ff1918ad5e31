package cover

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultManifestFile is the manifest written by instrument and consumed
// by check in the working directory.
const DefaultManifestFile = "coverage.manifest"

// UnknownFile is the sentinel recorded when no sequence point was seen
// before an instrumented instruction.
const UnknownFile = "unknown"

// UnknownLine is the sentinel line number paired with UnknownFile.
const UnknownLine int32 = -1

// Row is one manifest line. Its position in the manifest (0-based) is the
// probe index; the manifest must never be reordered or filtered.
type Row struct {
	Assembly string
	Method   string
	File     string
	Line     int32
	Offset   int32
	Text     string
}

// String renders the row in manifest wire form, fields joined by pipes.
func (r Row) String() string {
	return fmt.Sprintf("%s|%s|%s|%d|%d|%s",
		r.Assembly, r.Method, r.File, r.Line, r.Offset, r.Text)
}

// ParseRow decodes one manifest line. The instruction rendering may
// itself contain pipes, so only the first five separators split fields.
func ParseRow(line string) (Row, error) {
	parts := strings.SplitN(line, "|", 6)
	if len(parts) != 6 {
		return Row{}, fmt.Errorf("manifest row has %d fields, want 6: %q", len(parts), line)
	}
	lineNo, err := strconv.ParseInt(parts[3], 10, 32)
	if err != nil {
		return Row{}, fmt.Errorf("manifest row line number: %w", err)
	}
	offset, err := strconv.ParseInt(parts[4], 10, 32)
	if err != nil {
		return Row{}, fmt.Errorf("manifest row offset: %w", err)
	}
	return Row{
		Assembly: parts[0],
		Method:   parts[1],
		File:     parts[2],
		Line:     int32(lineNo),
		Offset:   int32(offset),
		Text:     parts[5],
	}, nil
}

// ManifestWriter appends rows to the manifest file in probe order.
type ManifestWriter struct {
	f *os.File
	w *bufio.Writer
}

// CreateManifest truncates and opens the manifest at path for writing.
func CreateManifest(path string) (*ManifestWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create manifest %q: %w", path, err)
	}
	return &ManifestWriter{f: f, w: bufio.NewWriter(f)}, nil
}

// Write appends one row.
func (m *ManifestWriter) Write(r Row) error {
	if _, err := m.w.WriteString(r.String()); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := m.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Close flushes buffered rows and closes the file.
func (m *ManifestWriter) Close() error {
	if err := m.w.Flush(); err != nil {
		m.f.Close()
		return fmt.Errorf("flush manifest: %w", err)
	}
	if err := m.f.Close(); err != nil {
		return fmt.Errorf("close manifest: %w", err)
	}
	return nil
}

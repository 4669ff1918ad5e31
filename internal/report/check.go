// Package report reconciles recorded hits against the probe manifest:
// classify every probe, compute the coverage ratio, emit the results
// file and the XML report, and clean up the single-use artifacts.
package report

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"fortio.org/safecast"

	"sharpcover/internal/cover"
	"sharpcover/internal/hitlog"
)

// DefaultResultsFile is the classified per-probe output, overwritten on
// every check.
const DefaultResultsFile = "coverage.results"

// DefaultXMLFile is the derived structured report.
const DefaultXMLFile = "coverage.xml"

// Options locate the artifacts of one instrument/run/check cycle. Zero
// values mean the defaults in the current working directory.
type Options struct {
	Dir          string
	ManifestPath string
	HitPrefix    string
	ResultsPath  string
	XMLPath      string
}

func (o *Options) fill() {
	if o.Dir == "" {
		o.Dir = "."
	}
	if o.ManifestPath == "" {
		o.ManifestPath = filepath.Join(o.Dir, cover.DefaultManifestFile)
	}
	if o.HitPrefix == "" {
		o.HitPrefix = cover.DefaultHitPrefix
	}
	if o.ResultsPath == "" {
		o.ResultsPath = filepath.Join(o.Dir, DefaultResultsFile)
	}
	if o.XMLPath == "" {
		o.XMLPath = filepath.Join(o.Dir, DefaultXMLFile)
	}
}

// Result summarizes one check.
type Result struct {
	Total    int
	Hits     int
	Misses   int
	Coverage float64
}

// Complete reports whether every probe executed.
func (r *Result) Complete() bool {
	return r.Misses == 0
}

// Check unions all recorded hits, classifies every manifest row in
// order, writes the results and XML files, deletes the consumed
// artifacts, and returns the summary. The caller must guarantee that no
// instrumented process is still running.
func Check(opts Options) (*Result, error) {
	opts.fill()

	hits, hitFiles, err := hitlog.ReadHits(opts.Dir, filepath.Base(opts.HitPrefix))
	if err != nil {
		return nil, err
	}

	manifest, err := os.Open(opts.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer manifest.Close()

	results, err := os.Create(opts.ResultsPath)
	if err != nil {
		return nil, fmt.Errorf("create results %q: %w", opts.ResultsPath, err)
	}
	out := bufio.NewWriter(results)

	res := &Result{}
	var classified []classifiedRow
	scanner := bufio.NewScanner(manifest)
	for scanner.Scan() {
		line := scanner.Text()
		row, err := cover.ParseRow(line)
		if err != nil {
			results.Close()
			return nil, fmt.Errorf("manifest row %d: %w", res.Total, err)
		}
		index, convErr := safecast.Conv[uint32](res.Total)
		if convErr != nil {
			results.Close()
			return nil, fmt.Errorf("manifest row %d: %w", res.Total, convErr)
		}
		hit := hits.Has(index)
		tag := "MISS"
		if hit {
			tag = "HIT"
			res.Hits++
		} else {
			res.Misses++
		}
		if _, err := fmt.Fprintf(out, "%s|%s\n", tag, line); err != nil {
			results.Close()
			return nil, fmt.Errorf("write results: %w", err)
		}
		classified = append(classified, classifiedRow{Row: row, Hit: hit})
		res.Total++
	}
	if err := scanner.Err(); err != nil {
		results.Close()
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if err := out.Flush(); err != nil {
		results.Close()
		return nil, fmt.Errorf("flush results: %w", err)
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("close results: %w", err)
	}

	res.Coverage = coverageRatio(res.Total, res.Misses)

	if err := writeXML(opts.XMLPath, res, classified); err != nil {
		return nil, err
	}

	// The manifest and hit files describe exactly one cycle; leaving
	// them behind would poison the next check.
	for _, path := range append(hitFiles, opts.ManifestPath) {
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove %q: %w", path, err)
		}
	}
	return res, nil
}

// coverageRatio is round((1-miss/total)*100, 2). A manifest with no
// probes has nothing to miss and counts as fully covered.
func coverageRatio(total, misses int) float64 {
	if total == 0 {
		return 100.0
	}
	ratio := 1.0 - float64(misses)/float64(total)
	return math.Round(ratio*100*100) / 100
}

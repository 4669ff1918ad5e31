package report

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"sharpcover/internal/cover"
)

// classifiedRow pairs a manifest row with its hit/miss classification.
type classifiedRow struct {
	Row cover.Row
	Hit bool
}

type xmlReport struct {
	XMLName       xml.Name     `xml:"coverage"`
	LineRate      float64      `xml:"line-rate,attr"`
	ProbesValid   int          `xml:"probes-valid,attr"`
	ProbesCovered int          `xml:"probes-covered,attr"`
	Timestamp     int64        `xml:"timestamp,attr"`
	Packages      []xmlPackage `xml:"packages>package"`
}

type xmlPackage struct {
	Name    string     `xml:"name,attr"`
	Classes []xmlClass `xml:"classes>class"`
}

type xmlClass struct {
	Name     string      `xml:"name,attr"`
	Filename string      `xml:"filename,attr"`
	Methods  []xmlMethod `xml:"methods>method"`
}

type xmlMethod struct {
	Name  string    `xml:"name,attr"`
	Lines []xmlLine `xml:"lines>line"`
}

type xmlLine struct {
	Number int32 `xml:"number,attr"`
	Offset int32 `xml:"offset,attr"`
	Hits   int   `xml:"hits,attr"`
}

// writeXML derives the structured report from the classified rows,
// grouped assembly > type > method in manifest order.
func writeXML(path string, res *Result, rows []classifiedRow) error {
	doc := xmlReport{
		LineRate:      res.Coverage / 100,
		ProbesValid:   res.Total,
		ProbesCovered: res.Hits,
		Timestamp:     time.Now().Unix(),
	}

	pkgIndex := make(map[string]int)
	classIndex := make(map[string]int)
	methodIndex := make(map[string]int)
	for _, cr := range rows {
		pi, ok := pkgIndex[cr.Row.Assembly]
		if !ok {
			pi = len(doc.Packages)
			pkgIndex[cr.Row.Assembly] = pi
			doc.Packages = append(doc.Packages, xmlPackage{Name: cr.Row.Assembly})
		}
		pkg := &doc.Packages[pi]

		className, methodName := splitMethodName(cr.Row.Method)
		classKey := cr.Row.Assembly + "|" + className
		ci, ok := classIndex[classKey]
		if !ok {
			ci = len(pkg.Classes)
			classIndex[classKey] = ci
			pkg.Classes = append(pkg.Classes, xmlClass{
				Name:     className,
				Filename: cr.Row.File,
			})
		}
		class := &pkg.Classes[ci]

		methodKey := classKey + "|" + methodName
		mi, ok := methodIndex[methodKey]
		if !ok {
			mi = len(class.Methods)
			methodIndex[methodKey] = mi
			class.Methods = append(class.Methods, xmlMethod{Name: methodName})
		}
		method := &class.Methods[mi]

		hits := 0
		if cr.Hit {
			hits = 1
		}
		method.Lines = append(method.Lines, xmlLine{
			Number: cr.Row.Line,
			Offset: cr.Row.Offset,
			Hits:   hits,
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %q: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(xml.Header); err != nil {
		return fmt.Errorf("write report %q: %w", path, err)
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("write report %q: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("write report %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report %q: %w", path, err)
	}
	return nil
}

// splitMethodName splits "Namespace.Type::Method(args)" into its type
// and method parts. Names without a separator land entirely in the
// method part under a synthetic global type.
func splitMethodName(full string) (class, method string) {
	if i := strings.Index(full, "::"); i >= 0 {
		return full[:i], full[i+2:]
	}
	return "<global>", full
}

package external

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/l3aro/go-sharp-flow/pkg/rules"
	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// Issue is one finding reported by the helper. Line and Col are zero-based
// as written by the helper.
type Issue struct {
	Key     string
	Message string
	File    string
	Line    int
	Col     int
}

// Diagnostic converts the issue to a one-character diagnostic.
func (i Issue) Diagnostic() rules.Diagnostic {
	return rules.Diagnostic{
		RuleID:  i.Key,
		Message: i.Message,
		Span: syntax.Span{
			StartLine: i.Line + 1,
			StartCol:  i.Col + 1,
			EndLine:   i.Line + 1,
			EndCol:    i.Col + 2,
		},
	}
}

// ReadIssuesFile parses the helper results file at path.
func ReadIssuesFile(path string) ([]Issue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening results: %w", err)
	}
	defer f.Close()
	return ReadIssues(f)
}

// ReadIssues collects every Issue element in r, at any depth.
func ReadIssues(r io.Reader) ([]Issue, error) {
	dec := xml.NewDecoder(r)
	var issues []Issue
	sawRoot := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing results: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawRoot = true
		if start.Name.Local != "Issue" {
			continue
		}
		issue, err := issueFrom(start)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	if !sawRoot {
		return nil, errors.New("parsing results: no root element")
	}
	return issues, nil
}

func issueFrom(el xml.StartElement) (Issue, error) {
	attrs := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		attrs[a.Name.Local] = a.Value
	}
	for _, name := range []string{"key", "message", "l", "c", "f"} {
		if _, ok := attrs[name]; !ok {
			return Issue{}, fmt.Errorf("parsing results: issue without %q attribute", name)
		}
	}
	line, err := strconv.Atoi(attrs["l"])
	if err != nil {
		return Issue{}, fmt.Errorf("parsing results: line %q: %w", attrs["l"], err)
	}
	col, err := strconv.Atoi(attrs["c"])
	if err != nil {
		return Issue{}, fmt.Errorf("parsing results: column %q: %w", attrs["c"], err)
	}
	return Issue{
		Key:     attrs["key"],
		Message: attrs["message"],
		File:    attrs["f"],
		Line:    line,
		Col:     col,
	}, nil
}

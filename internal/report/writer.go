package report

import (
	"io"
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/linkspider/internal/model"
)

// Writer renders a crawl summary.
type Writer interface {
	// Write renders summary and returns the number of bytes written.
	Write(summary *model.CrawlSummary) (int, error)
}

// Format selects a Writer implementation.
type Format int

const (
	// FormatText is the plain text report.
	FormatText Format = iota
	// FormatMarkdown is the Markdown report.
	FormatMarkdown
	// FormatJSON is the indented JSON report.
	FormatJSON
)

// NewWriter returns the writer for format. version is embedded in JSON output.
func NewWriter(format Format, output io.Writer, version string) Writer {
	switch format {
	case FormatMarkdown:
		return NewMarkdownWriter(output)
	case FormatJSON:
		return NewFullJSONWriter(output, version, WithPrettyPrint())
	default:
		return NewSimpleWriter(output)
	}
}

// MultiWriter writes the same summary to several Writers.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write stops at the first error and returns the bytes written so far.
func (m *MultiWriter) Write(summary *model.CrawlSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// status describes how the crawl ended, title-cased for display.
func status(summary *model.CrawlSummary) string {
	s := "complete"
	if summary.Interrupted {
		s = "interrupted"
	}
	return cases.Title(language.English).String(s)
}

// failure is one failed URL, for sorted output.
type failure struct {
	url string
	err string
}

func sortedFailures(summary *model.CrawlSummary) []failure {
	failures := make([]failure, 0, len(summary.Failures))
	for u, e := range summary.Failures {
		failures = append(failures, failure{url: u, err: e})
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].url < failures[j].url })
	return failures
}

// truncateString truncates s to maxLen bytes, ending with "...".
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/linkspider/internal/model"
)

// SimpleWriter writes a plain text report for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose lists every visited URL.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every visited URL in the report.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that writes to output.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write implements Writer.
func (w *SimpleWriter) Write(summary *model.CrawlSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeCounts(&sb, summary)
	w.writeFailures(&sb, summary)
	w.writePending(&sb, summary)
	if w.verbose {
		w.writeVisited(&sb, summary)
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.CrawlSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        LINKSPIDER CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Session:      %s\n", summary.SessionID)
	fmt.Fprintf(sb, "Seeds:        %s\n", strings.Join(summary.Seeds, ", "))
	fmt.Fprintf(sb, "Started:      %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Elapsed:      %s\n", summary.Elapsed().Round(time.Millisecond))
	fmt.Fprintf(sb, "Concurrency:  %d (peak %d)\n", summary.Concurrency, summary.PeakInFlight)
	fmt.Fprintf(sb, "Status:       %s\n", status(summary))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeCounts(sb *strings.Builder, summary *model.CrawlSummary) {
	section(sb, "RESULTS")

	fmt.Fprintf(sb, "  VISITED:  %d\n", len(summary.Visited))
	fmt.Fprintf(sb, "  FETCHED:  %d\n", summary.Fetched)
	fmt.Fprintf(sb, "  FAILED:   %d\n", summary.Failed)
	fmt.Fprintf(sb, "  LINKS:    %d\n", summary.LinksFound)
	if len(summary.Pending) > 0 {
		fmt.Fprintf(sb, "  PENDING:  %d\n", len(summary.Pending))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, summary *model.CrawlSummary) {
	if len(summary.Failures) == 0 {
		return
	}

	section(sb, "FAILURES")
	for _, f := range sortedFailures(summary) {
		fmt.Fprintf(sb, "  [!] %s\n", f.url)
		fmt.Fprintf(sb, "      %s\n", f.err)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writePending(sb *strings.Builder, summary *model.CrawlSummary) {
	if len(summary.Pending) == 0 {
		return
	}

	section(sb, "NOT CRAWLED")
	for _, u := range summary.Pending {
		fmt.Fprintf(sb, "  [ ] %s\n", u)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeVisited(sb *strings.Builder, summary *model.CrawlSummary) {
	section(sb, "VISITED")
	for _, u := range summary.Visited {
		marker := "+"
		if _, failed := summary.Failures[u]; failed {
			marker = "!"
		}
		fmt.Fprintf(sb, "  [%s] %s\n", marker, u)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by linkspider\n")
	sb.WriteString("https://github.com/nao1215/linkspider\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/linkspider/internal/model"
)

// MarkdownWriter writes a GitHub flavored Markdown report.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that writes to output.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write implements Writer.
func (w *MarkdownWriter) Write(summary *model.CrawlSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeResults(md, summary)
	w.writeFailures(md, summary)
	w.writePending(md, summary)
	w.writeVisited(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H1("Crawl Report")
	md.PlainText("")

	seeds := make([]string, len(summary.Seeds))
	for i, s := range summary.Seeds {
		seeds[i] = "`" + s + "`"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Session", "`" + summary.SessionID + "`"},
			{"Seeds", strings.Join(seeds, "<br>")},
			{"Started", summary.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", summary.Elapsed().Round(time.Millisecond).String()},
			{"Concurrency", strconv.Itoa(summary.Concurrency) + " (peak " + strconv.Itoa(summary.PeakInFlight) + ")"},
			{"Status", statusIcon(summary) + " " + status(summary)},
		},
	})
	md.PlainText("")
}

func statusIcon(summary *model.CrawlSummary) string {
	if summary.Interrupted {
		return "⚠️"
	}
	return "✅"
}

func (w *MarkdownWriter) writeResults(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H2("Results")
	md.PlainText("")

	rows := [][]string{
		{"Visited", strconv.Itoa(len(summary.Visited))},
		{"✅ Fetched", strconv.Itoa(summary.Fetched)},
		{"❌ Failed", strconv.Itoa(summary.Failed)},
		{"Links found", strconv.Itoa(summary.LinksFound)},
	}
	if len(summary.Pending) > 0 {
		rows = append(rows, []string{"⏸️ Not crawled", strconv.Itoa(len(summary.Pending))})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if summary.Fetched+summary.Failed > 0 {
		w.writePieChart(md, summary)
	}
	w.writeAlert(md, summary)
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.CrawlSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Fetch Outcomes"),
		piechart.WithShowData(true),
	)
	if summary.Fetched > 0 {
		chart.LabelAndIntValue("Fetched", uint64(summary.Fetched))
	}
	if summary.Failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(summary.Failed))
	}
	if n := len(summary.Pending); n > 0 {
		chart.LabelAndIntValue("Not crawled", uint64(n))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.CrawlSummary) {
	switch {
	case summary.Interrupted:
		md.Cautionf("The crawl was interrupted. %d URL(s) were never fetched.", len(summary.Pending))
	case summary.Fetched == 0 && summary.Failed > 0:
		md.Warningf("Every fetch failed (%d). Check the seeds and network settings.", summary.Failed)
	case summary.Failed > 0:
		md.Importantf("%d of %d fetch(es) failed.", summary.Failed, summary.Fetched+summary.Failed)
	default:
		md.Tip("Every visited page was fetched.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, summary *model.CrawlSummary) {
	if len(summary.Failures) == 0 {
		return
	}

	md.H2("Failures")
	md.PlainText("")

	failures := sortedFailures(summary)
	rows := make([][]string, len(failures))
	for i, f := range failures {
		rows[i] = []string{"`" + f.url + "`", truncateString(f.err, 80)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writePending(md *markdown.Markdown, summary *model.CrawlSummary) {
	if len(summary.Pending) == 0 {
		return
	}

	md.H2("Not Crawled")
	md.PlainText("")
	md.BulletList(summary.Pending...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeVisited(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H2("Visited")
	md.PlainText("")

	if len(summary.Visited) == 0 {
		md.PlainText("No URLs were visited.")
		md.PlainText("")
		return
	}

	md.Details(strconv.Itoa(len(summary.Visited))+" URL(s)", "- "+strings.Join(summary.Visited, "\n- "))
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [linkspider](https://github.com/nao1215/linkspider)*")
}

// Package report renders a crawl summary for people and tools.
//
// Writers:
//   - SimpleWriter: plain text for the terminal (default)
//   - MarkdownWriter: GitHub flavored Markdown with a mermaid pie chart
//   - JSONWriter: the summary as JSON, optionally wrapped with the version
//
// All writers implement Writer and can be combined with MultiWriter.
package report

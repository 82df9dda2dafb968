// Package main provides the entry point for the linkspider CLI.
//
// linkspider is a concurrent web crawler. Starting from one or more seed
// URLs it fetches pages, extracts absolute links and follows them, keeping
// at most N fetches in flight, until no undiscovered URL remains.
//
// Usage:
//
//	linkspider crawl <seed-url>...
//	linkspider history [session-id]
//
// See --help for all available options.
package main

func main() {
	Execute()
}

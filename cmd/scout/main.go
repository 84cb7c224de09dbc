// Package main provides the entry point for the scout CLI.
//
// Scout discovers the URL surface of a website by crawling its link graph
// and probing common paths from a wordlist.
//
// Usage:
//
//	scout crawl https://example.com
//	scout crawl --fuzz https://example.com
//
// See --help for all available options.
package main

// main is the entry point for scout.
func main() {
	Execute()
}

package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func urls(links []Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.URL
	}
	return out
}

func TestExtractLinks(t *testing.T) {
	body := []byte(`<!DOCTYPE html>
<html>
<body>
	<a href="/about">About</a>
	<a href="contact.html">Contact</a>
	<a href="https://other.com/page">External</a>
	<link rel="stylesheet" href="/css/site.css">
	<form action="/search"></form>
	<script src="/js/app.js"></script>
	<iframe src="/embed"></iframe>
	<img src="/logo.png">
</body>
</html>`)

	got := urls(ExtractLinks("http://example.com/dir/page.html", body))
	assert.Equal(t, []string{
		"http://example.com/about",
		"http://example.com/dir/contact.html",
		"https://other.com/page",
		"http://example.com/css/site.css",
		"http://example.com/search",
		"http://example.com/js/app.js",
		"http://example.com/embed",
		"http://example.com/logo.png",
	}, got)
}

func TestExtractLinksSkipsNonNavigational(t *testing.T) {
	body := []byte(`<html><body>
	<a href="#top">Top</a>
	<a href="javascript:void(0)">JS</a>
	<a href="mailto:x@example.com">Mail</a>
	<a href="tel:+123456">Call</a>
	<a href="data:text/plain,hi">Data</a>
	<a href="ftp://example.com/file">FTP</a>
	<a href="">Empty</a>
</body></html>`)

	assert.Empty(t, ExtractLinks("http://example.com/", body))
}

func TestExtractLinksDedup(t *testing.T) {
	body := []byte(`<html><body>
	<a href="/a">One</a>
	<a href="/a">Two</a>
	<a href="/a#frag">Three</a>
</body></html>`)

	got := ExtractLinks("http://example.com/", body)
	assert.Len(t, got, 1)
	assert.Equal(t, "http://example.com/a", got[0].URL)
}

func TestExtractLinksHonorsBaseTag(t *testing.T) {
	body := []byte(`<html><head><base href="http://example.com/sub/"></head>
<body><a href="page">Page</a></body></html>`)

	got := urls(ExtractLinks("http://example.com/", body))
	assert.Equal(t, []string{"http://example.com/sub/page"}, got)
}

func TestExtractLinksMalformedHTML(t *testing.T) {
	// The tokenizer is forgiving; broken markup must not panic and still
	// yields whatever could be parsed.
	body := []byte(`<html><body><a href="/ok">ok<div><<<>  <a href="/also`)
	got := urls(ExtractLinks("http://example.com/", body))
	assert.Contains(t, got, "http://example.com/ok")
}

func TestExtractLinksTagAttribution(t *testing.T) {
	body := []byte(`<html><body>
	<a href="/a">A</a>
	<script src="/app.js"></script>
</body></html>`)

	got := ExtractLinks("http://example.com/", body)
	tags := map[string]string{}
	for _, l := range got {
		tags[l.URL] = l.Tag
	}
	assert.Equal(t, "a", tags["http://example.com/a"])
	assert.Equal(t, "script", tags["http://example.com/app.js"])
}

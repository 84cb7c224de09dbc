// Package urlutil provides URL normalization and utility functions.
//
// The normalized form produced here is the dedup key for the whole
// session: two URLs that normalize identically are crawled at most once.
package urlutil

import (
	"net/url"
	"sort"
	"strings"
)

// Normalize canonicalizes a URL string for use as a visited-set key:
// lowercase scheme and host, default ports stripped, fragment dropped,
// path cleaned of duplicate slashes and dot segments, trailing slash
// removed (except root), query parameters sorted.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	if !u.IsAbs() {
		return "", &url.Error{Op: "normalize", URL: rawURL, Err: errNotAbsolute}
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	} else if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	path := u.Path
	if path == "" {
		path = "/"
	}
	path = cleanPath(path)
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	u.Path = path

	if u.RawQuery != "" {
		u.RawQuery = sortedQueryString(u.Query())
	}

	return u.String(), nil
}

type normalizeError string

func (e normalizeError) Error() string { return string(e) }

const errNotAbsolute = normalizeError("not an absolute URL")

// cleanPath collapses duplicate slashes and resolves . and .. segments.
func cleanPath(path string) string {
	parts := strings.Split(path, "/")
	var result []string
	for _, part := range parts {
		switch part {
		case "", ".":
			// collapse
		case "..":
			if len(result) > 0 {
				result = result[:len(result)-1]
			}
		default:
			result = append(result, part)
		}
	}
	cleaned := "/" + strings.Join(result, "/")
	if strings.HasSuffix(path, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

// sortedQueryString encodes query parameters in sorted key and value order.
func sortedQueryString(query url.Values) string {
	if len(query) == 0 {
		return ""
	}

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		values := query[k]
		sort.Strings(values)
		for _, v := range values {
			if v == "" {
				parts = append(parts, url.QueryEscape(k))
			} else {
				parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
	}
	return strings.Join(parts, "&")
}

// ExtractHost extracts the lowercase host (with port, if any) from a URL.
func ExtractHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return strings.ToLower(u.Host), nil
}

// Resolve resolves a possibly relative reference against a base URL.
func Resolve(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// IsSameHost checks if two URLs share a host.
func IsSameHost(url1, url2 string) bool {
	host1, err1 := ExtractHost(url1)
	host2, err2 := ExtractHost(url2)
	if err1 != nil || err2 != nil {
		return false
	}
	return host1 == host2
}

// DirectoryOf returns the directory-level URL of rawURL, without a
// trailing slash. For "http://h/a/b.html" it returns "http://h/a";
// for "http://h/" it returns "http://h".
func DirectoryOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	u.RawQuery = ""

	path := u.Path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		path = path[:idx]
	}
	u.Path = path
	return strings.TrimSuffix(u.String(), "/"), nil
}

package analyzer

import (
	"regexp"

	"github.com/scout-crawler/scout/internal/urlutil"
)

// endpointPatterns match API-style paths embedded in JavaScript sources.
var endpointPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/api/v\d+/[A-Za-z0-9_\-/]+`),
	regexp.MustCompile(`/api/[A-Za-z0-9_\-/]+`),
	regexp.MustCompile(`/v\d+/[A-Za-z0-9_\-/]+`),
	regexp.MustCompile(`/[A-Za-z0-9_\-/]+\.(?:json|xml|html)`),
}

// ScanScript extracts endpoint-looking paths from a JavaScript body and
// resolves them against baseURL. Duplicates within the body are collapsed.
func ScanScript(baseURL string, body []byte) []string {
	seen := make(map[string]struct{})
	var endpoints []string

	for _, re := range endpointPatterns {
		for _, match := range re.FindAll(body, -1) {
			resolved, err := urlutil.Resolve(baseURL, string(match))
			if err != nil {
				continue
			}
			if _, dup := seen[resolved]; dup {
				continue
			}
			seen[resolved] = struct{}{}
			endpoints = append(endpoints, resolved)
		}
	}
	return endpoints
}

// IsScriptURL reports whether a URL looks like a JavaScript source.
var scriptSuffix = regexp.MustCompile(`(?i)\.js(?:\?|$)`)

func IsScriptURL(rawURL string) bool {
	return scriptSuffix.MatchString(rawURL)
}

package crawler

import (
	"regexp"
	"strings"
)

// excludedLink matches links that never lead to an indexable page: documents,
// images, archives, script endpoints with extra path, fragments and query strings.
var excludedLink = regexp.MustCompile(`(?i)(\.(pdf|docx?|xlsx?|pptx?|odt|rtf|png|jpe?g|gif|bmp|svg|webp|ico|zip|rar|7z|gz|tar|mp3|mp4|avi|mov)$)|\.php.+|#|\?`)

// ChildPaths returns the distinct site-relative paths of links that belong to
// siteURL and pass the blocklist, in order of first appearance.
func ChildPaths(siteURL string, links []string) []string {
	seen := make(map[string]bool, len(links))
	var out []string
	for _, link := range links {
		if !strings.HasPrefix(link, siteURL) || excludedLink.MatchString(link) {
			continue
		}
		path := link[len(siteURL):]
		if path == "" {
			path = "/"
		}
		if path[0] != '/' {
			continue
		}
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}
	return out
}

package extract

import (
	"net/url"
	"regexp"
	"strings"

	"jobtrack/internal/models"
)

var urlRe = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// ExtractLinks collects every URL in the body and classifies each one via
// the host/path rule tables.
func ExtractLinks(body string) []Link {
	var links []Link
	seen := map[string]bool{}

	for _, raw := range urlRe.FindAllString(body, -1) {
		raw = strings.TrimRight(raw, ".,;")
		if seen[raw] {
			continue
		}
		seen[raw] = true

		linkType, confidence := classifyLink(raw)
		links = append(links, Link{URL: raw, Type: linkType, Confidence: confidence})
	}
	return links
}

func classifyLink(raw string) (models.LinkType, float64) {
	u, err := url.Parse(raw)
	if err != nil {
		return models.LinkUnknown, 0.3
	}
	host := strings.ToLower(u.Hostname())

	for _, rule := range linkDomainRules {
		if host == rule.hostSuffix || strings.HasSuffix(host, "."+rule.hostSuffix) {
			return rule.linkType, rule.confidence
		}
	}

	lowerPath := strings.ToLower(host + u.Path)
	for _, word := range linkPathWords {
		if strings.Contains(lowerPath, word) {
			return models.LinkJobPosting, 0.6
		}
	}
	return models.LinkUnknown, 0.3
}

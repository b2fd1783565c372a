package archive

import (
	"regexp"
	"strings"
)

// Normalizer rewrites any subdomain of a canonical host to the bare host, so
// mirrored links (www., np., old., i.) archive as the same snapshot.
type Normalizer struct {
	re *regexp.Regexp
}

// NewNormalizer builds a Normalizer for the given canonical hosts, e.g.
// "reddit.com" and "redd.it". With no hosts every URL passes through.
func NewNormalizer(hosts []string) *Normalizer {
	quoted := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(h))
	}
	if len(quoted) == 0 {
		return &Normalizer{}
	}
	pattern := `(?i)^([a-z][a-z0-9+.-]*://)(?:[\w-]+\.)+(` + strings.Join(quoted, "|") + `)([:/?#]|$)`
	return &Normalizer{re: regexp.MustCompile(pattern)}
}

// Normalize returns rawURL with its host rewritten when it matches a rule.
// Applying it twice yields the same result as applying it once.
func (n *Normalizer) Normalize(rawURL string) string {
	if n == nil || n.re == nil {
		return rawURL
	}
	return n.re.ReplaceAllString(rawURL, "${1}${2}${3}")
}

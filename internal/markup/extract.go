// Package markup finds outbound links in the rendered body of a self post.
package markup

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/elsbot/snapshotbot/internal/bot"
)

// DefaultSiteRoot prefixes relative links found in a body.
const DefaultSiteRoot = "http://www.reddit.com"

// siteHost is the host relative links are matched against in the allow-list.
const siteHost = "reddit.com"

// Extractor implements bot.LinkExtractor with goquery.
type Extractor struct {
	siteRoot string
	policy   bot.DomainPolicy
}

var _ bot.LinkExtractor = (*Extractor)(nil)

// NewExtractor builds an extractor keeping anchors whose host policy admits.
func NewExtractor(siteRoot string, policy bot.DomainPolicy) *Extractor {
	if siteRoot == "" {
		siteRoot = DefaultSiteRoot
	}
	return &Extractor{
		siteRoot: strings.TrimRight(siteRoot, "/"),
		policy:   policy,
	}
}

// Extract returns the allow-listed anchors of bodyHTML in document order.
// The body may arrive entity-escaped and is unescaped before parsing.
func (e *Extractor) Extract(bodyHTML string) ([]bot.LinkCandidate, error) {
	if strings.TrimSpace(bodyHTML) == "" {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html.UnescapeString(bodyHTML)))
	if err != nil {
		return nil, fmt.Errorf("parse body: %w", err)
	}

	var links []bot.LinkCandidate
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		host := strings.ToLower(u.Host)
		if host == "" {
			host = siteHost
			href = e.siteRoot + u.Path
		}
		if !e.allows(host) {
			return
		}
		links = append(links, bot.LinkCandidate{
			RawURL: href,
			Label:  strings.TrimSpace(s.Text()),
		})
	})
	return links, nil
}

func (e *Extractor) allows(host string) bool {
	return e.policy != nil && e.policy.Allow(host)
}

// Package simple contains the domain allow-list policy.
package simple

import "strings"

// AllDomains is the allow-list entry that admits every domain.
const AllDomains = "all"

// Policy admits submissions and links whose domain is allow-listed.
type Policy struct {
	domains  map[string]struct{}
	allowAll bool
}

// New creates a Policy. Entries are matched case-insensitively.
func New(domains []string) *Policy {
	p := &Policy{domains: make(map[string]struct{}, len(domains))}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if d == AllDomains {
			p.allowAll = true
		}
		p.domains[d] = struct{}{}
	}
	return p
}

// Allow reports whether domain is admitted.
func (p *Policy) Allow(domain string) bool {
	if p == nil {
		return false
	}
	if p.allowAll {
		return true
	}
	_, ok := p.domains[strings.ToLower(domain)]
	return ok
}

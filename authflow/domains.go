package authflow

import (
	"sort"
	"strings"
)

// VerifiedDomains is the immutable set of email domains allowed to use
// company SSO. The zero value is empty and disables SSO.
type VerifiedDomains struct {
	set map[string]struct{}
}

// ParseVerifiedDomains reads a comma separated list. Entries are trimmed and
// lower-cased; blanks are skipped.
func ParseVerifiedDomains(csv string) VerifiedDomains {
	return NewVerifiedDomains(strings.Split(csv, ",")...)
}

func NewVerifiedDomains(domains ...string) VerifiedDomains {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		set[d] = struct{}{}
	}
	return VerifiedDomains{set: set}
}

// Enabled reports whether any domain is configured.
func (v VerifiedDomains) Enabled() bool {
	return len(v.set) > 0
}

// IsVerified reports whether the part of email after the last '@',
// lower-cased, is a configured domain.
func (v VerifiedDomains) IsVerified(email string) bool {
	domain, ok := DomainOf(email)
	if !ok {
		return false
	}
	_, found := v.set[domain]
	return found
}

// List returns the domains sorted.
func (v VerifiedDomains) List() []string {
	out := make([]string, 0, len(v.set))
	for d := range v.set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// DomainOf extracts the lower-cased domain of an email address.
func DomainOf(email string) (string, bool) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:])), true
}

package orchestrator

import "strings"

// #region domain
// Domain identifies a registered adapter.
type Domain string

const (
	DomainEducation  Domain = "education"
	DomainHealth     Domain = "health"
	DomainGovernance Domain = "governance"
)

// KnownDomains lists the domains the service ships adapters for.
var KnownDomains = []Domain{DomainEducation, DomainHealth, DomainGovernance}

// ParseDomain normalizes wire input (trimmed, lower-case) and reports whether
// it names a known domain. The normalized value is returned either way so that
// unknown domains can still be echoed back to the caller.
func ParseDomain(s string) (Domain, bool) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range KnownDomains {
		if d == k {
			return d, true
		}
	}
	return d, false
}

// #endregion domain

// #region status
// StatusUnsupported marks the audit record of a reply for an unregistered domain.
const StatusUnsupported = "unsupported"

// #endregion status

package domain

import (
	"strings"

	"golang.org/x/net/idna"
)

// Observation is one sighting of a domain, produced by a monitor source.
type Observation struct {
	Domain string
	// IP is the querying address; empty when the flow carried none.
	IP   string
	Time Timestamp
}

func (o Observation) HasIP() bool {
	return o.IP != ""
}

// IPSighting is a public address seen in monitor flows, with the earliest
// activity recorded for it.
type IPSighting struct {
	IP        string
	FirstSeen Timestamp
}

// NormalizeDomain lowercases a domain, strips the root dot and converts IDNs
// to their ASCII form. Names the IDNA lookup profile rejects (underscores in
// service labels, for example) are only lowercased.
func NormalizeDomain(raw string) string {
	name := strings.TrimSuffix(strings.TrimSpace(raw), ".")
	if name == "" {
		return ""
	}
	ascii, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return strings.ToLower(name)
	}
	return ascii
}

// Package hsts defines the record model and format codecs for the two data
// sources hstsync reconciles: the Chromium HSTS preload list (JSON) and the
// wget known-hosts database (line-oriented text).
//
// Both formats are keyed mappings. Duplicate keys are a hard decode failure.
package hsts

import (
	"fmt"

	"github.com/agentstation/hstsync/pkg/constants"
)

// PreloadEntry is a single record from the authoritative preload list.
// Immutable; lives for the duration of one reconciliation run.
type PreloadEntry struct {
	// Name is the domain name, unique within a list.
	Name string `json:"name"`

	// Mode decides pin-worthiness; only "force-https" (case-insensitive)
	// entries are materialized into the known-hosts database.
	Mode string `json:"mode"`

	// IncludeSubdomains is the HSTS subdomain inclusion flag.
	IncludeSubdomains bool `json:"include_subdomains"`

	// IncludeSubdomainsForPinning is the pinning-specific subdomain flag.
	IncludeSubdomainsForPinning bool `json:"include_subdomains_for_pinning"`
}

// EffectiveIncludeSubdomains OR-combines the two authoritative subdomain
// flags: inclusion in either category forces the subdomain flag on the
// materialized row.
func (e PreloadEntry) EffectiveIncludeSubdomains() bool {
	return e.IncludeSubdomains || e.IncludeSubdomainsForPinning
}

// KnownHostEntry is a single record of the wget known-hosts database.
// Immutable; constructed during decode or synthesized during reconciliation.
type KnownHostEntry struct {
	// Hostname is the domain name, unique within a database.
	Hostname string

	// Port is the TCP port the policy applies to (0 in practice).
	Port int64

	// IncludeSubdomains reports whether the policy covers subdomains.
	IncludeSubdomains bool

	// Created is the Unix-epoch creation time, or the sentinel value
	// marking a preload-derived synthetic row.
	Created int64

	// MaxAge is the policy lifetime in seconds; 0 for preload-derived rows.
	MaxAge int64
}

// PreloadDerived reports whether the entry was synthesized from a preload
// list rather than learned from live traffic. The database format carries no
// provenance field; the reserved created/max-age pattern is the only signal.
func (e KnownHostEntry) PreloadDerived() bool {
	return e.Created == constants.PreloadCreatedSentinel && e.MaxAge == 0
}

// Line encodes the entry as one database record line: five tab-joined
// columns in the order hostname, port, include-subdomains, created, max-age.
func (e KnownHostEntry) Line() string {
	incl := 0
	if e.IncludeSubdomains {
		incl = 1
	}
	return fmt.Sprintf("%s\t%d\t%d\t%d\t%d", e.Hostname, e.Port, incl, e.Created, e.MaxAge)
}

// NewPreloadDerivedEntry synthesizes a known-host row from an authoritative
// preload entry, marked with the sentinel created/max-age pattern so a later
// run can recognize its provenance.
func NewPreloadDerivedEntry(p PreloadEntry) KnownHostEntry {
	return KnownHostEntry{
		Hostname:          p.Name,
		Port:              0,
		IncludeSubdomains: p.EffectiveIncludeSubdomains(),
		Created:           constants.PreloadCreatedSentinel,
		MaxAge:            0,
	}
}

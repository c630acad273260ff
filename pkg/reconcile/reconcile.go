// Package reconcile computes the difference between the authoritative
// preload list and the local known-hosts database. It is pure: no I/O, no
// mutation of its inputs, deterministic output.
//
// The engine partitions the database into a preload-derived subset (rows
// matching the sentinel provenance pattern) and organically learned rows.
// Only the preload-derived subset is ever removed or updated; organic rows
// pass through untouched regardless of authoritative content.
package reconcile

import (
	"github.com/agentstation/hstsync/pkg/hsts"
)

// PreloadedSubset returns the entries of db that were put there by a
// previous reconciliation, identified by the sentinel created/max-age
// pattern. The database format has no provenance field, so this is an
// approximation by construction.
func PreloadedSubset(db *hsts.Database) map[string]hsts.KnownHostEntry {
	subset := make(map[string]hsts.KnownHostEntry)
	for _, e := range db.Entries() {
		if e.PreloadDerived() {
			subset[e.Hostname] = e
		}
	}
	return subset
}

// HostsToRemove returns the preloaded-subset hostnames that no longer appear
// in the authoritative list. A preload-derived row whose source entry
// disappeared is stale and must be dropped.
func HostsToRemove(preload map[string]hsts.PreloadEntry, preloaded map[string]hsts.KnownHostEntry) map[string]struct{} {
	remove := make(map[string]struct{})
	for hostname := range preloaded {
		if _, ok := preload[hostname]; !ok {
			remove[hostname] = struct{}{}
		}
	}
	return remove
}

// HostsToUpdate returns the preloaded-subset hostnames still present in the
// authoritative list whose effective include-subdomains flag (HSTS flag
// OR-combined with the pinning flag) differs from the local row's flag.
func HostsToUpdate(preload map[string]hsts.PreloadEntry, preloaded map[string]hsts.KnownHostEntry) map[string]struct{} {
	update := make(map[string]struct{})
	for hostname, local := range preloaded {
		authoritative, ok := preload[hostname]
		if !ok {
			continue
		}
		if authoritative.EffectiveIncludeSubdomains() != local.IncludeSubdomains {
			update[hostname] = struct{}{}
		}
	}
	return update
}

// EntriesToWrite returns the authoritative entries that must be materialized
// as preload-derived rows: mode is "force-https" (case-insensitive) and the
// name is either absent from the database entirely or slated for update.
func EntriesToWrite(preload map[string]hsts.PreloadEntry, db *hsts.Database, update map[string]struct{}) []hsts.PreloadEntry {
	var write []hsts.PreloadEntry
	for _, e := range preload {
		if !forceHTTPS(e) {
			continue
		}
		_, updating := update[e.Name]
		if !db.Has(e.Name) || updating {
			write = append(write, e)
		}
	}
	return write
}

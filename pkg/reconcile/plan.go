package reconcile

import (
	"strings"

	"github.com/agentstation/hstsync/pkg/constants"
	"github.com/agentstation/hstsync/pkg/hsts"
)

// Plan is the full output of one reconciliation computation: the three
// derived sets plus the collection of authoritative entries to write.
type Plan struct {
	// Preloaded is the preload-derived subset of the database.
	Preloaded map[string]hsts.KnownHostEntry

	// Remove holds hostnames of stale preload-derived rows.
	Remove map[string]struct{}

	// Update holds hostnames of preload-derived rows whose subdomain flag
	// changed on the authoritative side.
	Update map[string]struct{}

	// Write holds the authoritative entries to materialize, both fresh
	// inserts and re-writes of updated rows.
	Write []hsts.PreloadEntry
}

// NewPlan computes a reconciliation plan from the authoritative list and the
// local database. Pass an empty database when no destination file exists;
// the plan then reduces to insertions from scratch.
func NewPlan(preload map[string]hsts.PreloadEntry, db *hsts.Database) *Plan {
	preloaded := PreloadedSubset(db)
	update := HostsToUpdate(preload, preloaded)
	return &Plan{
		Preloaded: preloaded,
		Remove:    HostsToRemove(preload, preloaded),
		Update:    update,
		Write:     EntriesToWrite(preload, db, update),
	}
}

// Inserts returns the number of brand-new rows the plan introduces. Entries
// in Write that correspond to updated hostnames are re-writes, not inserts.
func (p *Plan) Inserts() int {
	return len(p.Write) - len(p.Update)
}

// NoOp reports whether the plan requires no change to the destination:
// nothing to write and nothing to remove. A no-op run skips the entire
// backup/write/replace sequence.
func (p *Plan) NoOp() bool {
	return len(p.Write) == 0 && len(p.Remove) == 0
}

// Retains reports whether the database row for hostname survives unchanged:
// it is neither removed nor re-written.
func (p *Plan) Retains(hostname string) bool {
	if _, ok := p.Remove[hostname]; ok {
		return false
	}
	if _, ok := p.Update[hostname]; ok {
		return false
	}
	return true
}

// forceHTTPS reports whether the entry's mode makes it eligible for
// materialization. Mode comparison is case-insensitive; all other string
// comparisons in this package are exact.
func forceHTTPS(e hsts.PreloadEntry) bool {
	return strings.EqualFold(e.Mode, constants.ForceHTTPSMode)
}

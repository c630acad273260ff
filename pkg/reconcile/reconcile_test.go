package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/hstsync/pkg/constants"
	"github.com/agentstation/hstsync/pkg/hsts"
)

func preloadDerived(hostname string, includeSubdomains bool) hsts.KnownHostEntry {
	return hsts.KnownHostEntry{
		Hostname:          hostname,
		IncludeSubdomains: includeSubdomains,
		Created:           constants.PreloadCreatedSentinel,
		MaxAge:            0,
	}
}

func organic(hostname string) hsts.KnownHostEntry {
	return hsts.KnownHostEntry{
		Hostname:          hostname,
		Port:              0,
		IncludeSubdomains: false,
		Created:           1700000000,
		MaxAge:            86400,
	}
}

func buildDatabase(t *testing.T, entries ...hsts.KnownHostEntry) *hsts.Database {
	t.Helper()
	db := hsts.NewDatabase()
	for _, e := range entries {
		require.NoError(t, db.Put(e))
	}
	return db
}

func TestPreloadedSubset(t *testing.T) {
	db := buildDatabase(t,
		preloadDerived("pre.example", true),
		organic("user.example"),
		// Sentinel created but nonzero max-age: learned, not preload-derived.
		hsts.KnownHostEntry{Hostname: "odd.example", Created: constants.PreloadCreatedSentinel, MaxAge: 60},
	)

	subset := PreloadedSubset(db)
	assert.Len(t, subset, 1)
	assert.Contains(t, subset, "pre.example")
}

func TestHostsToRemoveStaleEntry(t *testing.T) {
	db := buildDatabase(t, preloadDerived("old.example", true))
	preload := map[string]hsts.PreloadEntry{}

	plan := NewPlan(preload, db)
	assert.Equal(t, map[string]struct{}{"old.example": {}}, plan.Remove)
	assert.Empty(t, plan.Update)
	assert.Empty(t, plan.Write)
}

func TestHostsToUpdateFlagChange(t *testing.T) {
	db := buildDatabase(t, preloadDerived("example.com", false))
	preload := map[string]hsts.PreloadEntry{
		"example.com": {Name: "example.com", Mode: "force-https", IncludeSubdomainsForPinning: true},
	}

	plan := NewPlan(preload, db)
	assert.Contains(t, plan.Update, "example.com")
	assert.Empty(t, plan.Remove)
	require.Len(t, plan.Write, 1)
	assert.True(t, plan.Write[0].EffectiveIncludeSubdomains())
	assert.Equal(t, 0, plan.Inserts(), "an update re-writes, it does not insert")
}

func TestOrganicRowsNeverRemovedOrUpdated(t *testing.T) {
	db := buildDatabase(t, organic("user.example"))

	// Authoritative side has no entry for the organic row at all.
	plan := NewPlan(map[string]hsts.PreloadEntry{}, db)
	assert.Empty(t, plan.Remove)
	assert.Empty(t, plan.Update)
	assert.True(t, plan.Retains("user.example"))

	// Even when the authoritative side lists it with a different flag, an
	// organically learned row is not in the preloaded subset and is left alone.
	plan = NewPlan(map[string]hsts.PreloadEntry{
		"user.example": {Name: "user.example", Mode: "force-https", IncludeSubdomains: true},
	}, db)
	assert.Empty(t, plan.Remove)
	assert.Empty(t, plan.Update)
	assert.Empty(t, plan.Write, "names already in the database are not re-inserted")
}

func TestEntriesToWriteModeFilter(t *testing.T) {
	preload := map[string]hsts.PreloadEntry{
		"a.example": {Name: "a.example", Mode: "force-https"},
		"b.example": {Name: "b.example", Mode: "FORCE-HTTPS", IncludeSubdomains: true},
		"c.example": {Name: "c.example", Mode: "pinning-only"},
		"d.example": {Name: "d.example"},
	}

	plan := NewPlan(preload, hsts.NewDatabase())
	require.Len(t, plan.Write, 2, "mode comparison is case-insensitive and non-force-https entries are skipped")
	names := []string{plan.Write[0].Name, plan.Write[1].Name}
	assert.ElementsMatch(t, []string{"a.example", "b.example"}, names)
	assert.Equal(t, 2, plan.Inserts())
}

func TestPlanSetPartition(t *testing.T) {
	db := buildDatabase(t,
		preloadDerived("stays.example", true),
		preloadDerived("flag.example", false),
		preloadDerived("gone.example", true),
		organic("user.example"),
	)
	preload := map[string]hsts.PreloadEntry{
		"stays.example": {Name: "stays.example", Mode: "force-https", IncludeSubdomains: true},
		"flag.example":  {Name: "flag.example", Mode: "force-https", IncludeSubdomains: true},
		"new.example":   {Name: "new.example", Mode: "force-https"},
	}

	plan := NewPlan(preload, db)

	// preloadedSubset ⊆ knownHosts, and remove/update ⊆ preloadedSubset.
	for hostname := range plan.Preloaded {
		assert.True(t, db.Has(hostname))
	}
	for hostname := range plan.Remove {
		assert.Contains(t, plan.Preloaded, hostname)
	}
	for hostname := range plan.Update {
		assert.Contains(t, plan.Preloaded, hostname)
		assert.NotContains(t, plan.Remove, hostname, "remove and update are disjoint")
	}

	assert.Equal(t, map[string]struct{}{"gone.example": {}}, plan.Remove)
	assert.Equal(t, map[string]struct{}{"flag.example": {}}, plan.Update)
	assert.Equal(t, 1, plan.Inserts())
	assert.False(t, plan.NoOp())
}

func TestPlanIdempotence(t *testing.T) {
	preload := map[string]hsts.PreloadEntry{
		"a.example": {Name: "a.example", Mode: "force-https", IncludeSubdomains: true},
		"b.example": {Name: "b.example", Mode: "force-https"},
	}

	// First run: empty database, two inserts.
	first := NewPlan(preload, hsts.NewDatabase())
	require.Len(t, first.Write, 2)

	// Materialize the first run's output and re-plan.
	db := hsts.NewDatabase()
	for _, e := range first.Write {
		require.NoError(t, db.Put(hsts.NewPreloadDerivedEntry(e)))
	}
	second := NewPlan(preload, db)

	assert.Empty(t, second.Remove)
	assert.Empty(t, second.Update)
	assert.Empty(t, second.Write)
	assert.True(t, second.NoOp())
}

func TestPlanNoOpWithEmptyInputs(t *testing.T) {
	plan := NewPlan(map[string]hsts.PreloadEntry{}, hsts.NewDatabase())
	assert.True(t, plan.NoOp())
	assert.Equal(t, 0, plan.Inserts())
}

// Package updater sequences one reconciliation run: acquire the preload
// list, decode both sides, compute the plan, and rewrite the destination
// database when anything changed.
package updater

import (
	"context"
	"os"

	"github.com/agentstation/hstsync/internal/database"
	"github.com/agentstation/hstsync/internal/fetch"
	"github.com/agentstation/hstsync/pkg/hsts"
	"github.com/agentstation/hstsync/pkg/logging"
	"github.com/agentstation/hstsync/pkg/reconcile"
)

// Result reports the computed counts of one run. A no-op run still carries
// the counts; Written reports whether the destination was actually rewritten.
type Result struct {
	PreloadEntries int
	KnownHosts     int
	Removed        int
	Updated        int
	Inserted       int
	FetchedBytes   int64
	BackupPath     string
	Written        bool
}

// Updater reconciles a known-hosts database with a preload list source.
type Updater struct {
	destination string
	source      string
	resolver    *fetch.Resolver
}

// New creates an updater for the given destination database path and source
// locator (local path or HTTP(S) URL).
func New(destination, source string) *Updater {
	return &Updater{
		destination: destination,
		source:      source,
		resolver:    fetch.NewResolver(),
	}
}

// Run performs one reconciliation. All failures are fatal to the run and the
// destination file is only ever touched by the final replace step, so an
// aborted run leaves it exactly as it was (aside from a backup copy if that
// step had already succeeded).
func (u *Updater) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	src, err := u.resolver.Resolve(ctx, u.source)
	if err != nil {
		return nil, err
	}
	defer src.Cleanup()
	result.FetchedBytes = src.Size
	if src.Temp {
		logging.Info().Str("url", u.source).Int64("bytes", src.Size).Msg("Fetched preload list")
	}

	logging.Info().Str("path", src.Path).Msg("Parsing source file")
	preload, err := hsts.ParsePreloadListFile(src.Path)
	if err != nil {
		return nil, err
	}
	src.Cleanup()
	result.PreloadEntries = len(preload)
	logging.Info().Int("entries", len(preload)).Msg("Preload entries found")

	db := hsts.NewDatabase()
	if _, err := os.Stat(u.destination); err == nil {
		logging.Info().Str("path", u.destination).Msg("Parsing destination file")
		db, err = hsts.ParseDatabaseFile(u.destination)
		if err != nil {
			return nil, err
		}
		logging.Info().Int("entries", db.Len()).Msg("Known hosts found")
	}
	result.KnownHosts = db.Len()

	plan := reconcile.NewPlan(preload, db)
	result.Removed = len(plan.Remove)
	result.Updated = len(plan.Update)
	result.Inserted = plan.Inserts()
	logging.Info().Int("count", result.Removed).Msg("Entries to delete")
	logging.Info().Int("count", result.Updated).Msg("Entries to update")
	logging.Info().Int("count", result.Inserted).Msg("Entries to insert")

	if plan.NoOp() {
		logging.Info().Msg("Destination already up to date")
		return result, nil
	}

	writer := database.NewWriter(u.destination)
	backupPath, err := writer.Write(db, plan)
	if err != nil {
		return nil, err
	}
	if backupPath != "" {
		logging.Info().Str("backup", backupPath).Msg("Backed up existing file")
	}
	logging.Info().Str("path", u.destination).Msg("Updated destination file")

	result.BackupPath = backupPath
	result.Written = true
	return result, nil
}

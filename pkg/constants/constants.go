// Package constants provides shared constants used throughout the hstsync codebase.
// This includes timeouts, file permissions, and the on-disk conventions of the
// wget HSTS known-hosts database format.
package constants

import (
	"math"
	"time"
)

// Timeout constants define timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for fetching the preload list
	DefaultHTTPTimeout = 30 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Known-hosts database format constants
const (
	// PreloadCreatedSentinel is the magic "created" value marking a database
	// row as synthesized from a preload list rather than learned from live
	// traffic. The format carries no explicit provenance field, so the
	// sentinel pattern (created == PreloadCreatedSentinel && max-age == 0)
	// is the only provenance signal. Fixed at the maximum signed 32-bit
	// integer for compatibility with databases written by wget itself.
	PreloadCreatedSentinel = math.MaxInt32

	// DatabaseFieldCount is the number of whitespace-separated columns in a
	// known-hosts database record line.
	DatabaseFieldCount = 5
)

// DatabaseHeader is the fixed comment block written at the top of any freshly
// produced known-hosts database file.
var DatabaseHeader = []string{
	"# HSTS 1.0 Known Hosts database for GNU Wget.",
	"# Edit at your own risk.",
	"# <hostname>\t<port>\t<incl. subdomains>\t<created>\t<max-age>",
}

// Preload list constants
const (
	// ForceHTTPSMode is the preload entry mode that makes an entry eligible
	// for materialization in the known-hosts database. Compared
	// case-insensitively.
	ForceHTTPSMode = "force-https"

	// PreloadAcceptHeader is the Accept header sent when fetching the
	// preload list over HTTP(S).
	PreloadAcceptHeader = "application/json,*/*;q=0.9"
)

// Backup artifact constants
const (
	// BackupSuffix is appended to the destination path to form the backup
	// file name. Numeric disambiguation suffixes are probed on collision
	// (.bak.1.gz, .bak.2.gz, ...).
	BackupSuffix = ".bak.gz"
)

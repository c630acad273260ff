package database

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/hstsync/pkg/hsts"
	"github.com/agentstation/hstsync/pkg/reconcile"
)

const header = "# HSTS 1.0 Known Hosts database for GNU Wget.\n" +
	"# Edit at your own risk.\n" +
	"# <hostname>\t<port>\t<incl. subdomains>\t<created>\t<max-age>\n"

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWriteFreshInsert(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "wget-hsts")
	preload := map[string]hsts.PreloadEntry{
		"example.com": {Name: "example.com", Mode: "force-https", IncludeSubdomains: true},
	}
	plan := reconcile.NewPlan(preload, hsts.NewDatabase())

	backupPath, err := NewWriter(dest).Write(hsts.NewDatabase(), plan)
	require.NoError(t, err)
	assert.Empty(t, backupPath, "no backup when the destination did not exist")

	want := header + "example.com\t0\t1\t2147483647\t0\n"
	assert.Equal(t, want, readFile(t, dest))
}

func TestWriteRetainsOriginalOrderThenSortedInserts(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "wget-hsts")

	db := hsts.NewDatabase()
	require.NoError(t, db.Put(hsts.KnownHostEntry{Hostname: "zz.example", Created: 1700000000, MaxAge: 60}))
	require.NoError(t, db.Put(hsts.KnownHostEntry{Hostname: "aa.example", Created: 1700000001, MaxAge: 60}))

	preload := map[string]hsts.PreloadEntry{
		"mm.example": {Name: "mm.example", Mode: "force-https"},
		"bb.example": {Name: "bb.example", Mode: "force-https"},
	}
	plan := reconcile.NewPlan(preload, db)

	_, err := NewWriter(dest).Write(db, plan)
	require.NoError(t, err)

	content := readFile(t, dest)
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	require.Len(t, lines, 7) // 3 header + 2 retained + 2 synthesized

	// Retained rows keep their original relative order.
	assert.True(t, strings.HasPrefix(lines[3], "zz.example\t"))
	assert.True(t, strings.HasPrefix(lines[4], "aa.example\t"))
	// Synthesized rows follow, sorted lexicographically.
	assert.True(t, strings.HasPrefix(lines[5], "bb.example\t"))
	assert.True(t, strings.HasPrefix(lines[6], "mm.example\t"))
}

func TestWriteRemovesStaleAndRewritesUpdated(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "wget-hsts")

	db := hsts.NewDatabase()
	require.NoError(t, db.Put(hsts.KnownHostEntry{Hostname: "old.example", Created: 2147483647, MaxAge: 0}))
	require.NoError(t, db.Put(hsts.KnownHostEntry{Hostname: "flag.example", IncludeSubdomains: false, Created: 2147483647, MaxAge: 0}))
	require.NoError(t, db.Put(hsts.KnownHostEntry{Hostname: "user.example", Created: 1700000000, MaxAge: 86400}))

	preload := map[string]hsts.PreloadEntry{
		"flag.example": {Name: "flag.example", Mode: "force-https", IncludeSubdomainsForPinning: true},
	}
	plan := reconcile.NewPlan(preload, db)

	// Seed the destination so a backup is taken.
	require.NoError(t, os.WriteFile(dest, []byte("previous content\n"), 0644))

	backupPath, err := NewWriter(dest).Write(db, plan)
	require.NoError(t, err)
	assert.Equal(t, dest+".bak.gz", backupPath)

	content := readFile(t, dest)
	assert.NotContains(t, content, "old.example")
	assert.Contains(t, content, "user.example\t0\t0\t1700000000\t86400")
	assert.Contains(t, content, "flag.example\t0\t1\t2147483647\t0")

	// Backup is a byte-for-byte gzip copy of the previous destination.
	f, err := os.Open(backupPath)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	original, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "previous content\n", string(original))
}

func TestBackupProbesNumericSuffixes(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "wget-hsts")
	require.NoError(t, os.WriteFile(dest, []byte("db\n"), 0644))
	require.NoError(t, os.WriteFile(dest+".bak.gz", nil, 0644))
	require.NoError(t, os.WriteFile(dest+".bak.1.gz", nil, 0644))

	preload := map[string]hsts.PreloadEntry{
		"example.com": {Name: "example.com", Mode: "force-https"},
	}
	plan := reconcile.NewPlan(preload, hsts.NewDatabase())

	backupPath, err := NewWriter(dest).Write(hsts.NewDatabase(), plan)
	require.NoError(t, err)
	assert.Equal(t, dest+".bak.2.gz", backupPath)
}

func TestWriteReplacesDestinationCompletely(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "wget-hsts")
	require.NoError(t, os.WriteFile(dest, []byte("stale line that must not survive\n"), 0644))

	db, err := hsts.ParseDatabaseFile(dest)
	require.NoError(t, err)
	require.Equal(t, 0, db.Len(), "non-record line is skipped by the codec")

	preload := map[string]hsts.PreloadEntry{
		"example.com": {Name: "example.com", Mode: "force-https"},
	}
	plan := reconcile.NewPlan(preload, db)

	_, err = NewWriter(dest).Write(db, plan)
	require.NoError(t, err)
	assert.NotContains(t, readFile(t, dest), "stale line")
}

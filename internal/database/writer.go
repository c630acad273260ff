// Package database writes the reconciled known-hosts database to disk:
// scratch-file build, compressed backup of the previous file, then an
// atomic rename-or-replace of the destination.
package database

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"syscall"

	"github.com/klauspost/compress/gzip"

	"github.com/agentstation/hstsync/pkg/constants"
	"github.com/agentstation/hstsync/pkg/errors"
	"github.com/agentstation/hstsync/pkg/hsts"
	"github.com/agentstation/hstsync/pkg/logging"
	"github.com/agentstation/hstsync/pkg/reconcile"
)

// Writer persists reconciliation plans to a destination database file.
type Writer struct {
	// Destination is the path of the known-hosts database. Created if
	// absent; otherwise only ever touched by the final replace step.
	Destination string
}

// NewWriter creates a writer for the given destination path.
func NewWriter(destination string) *Writer {
	return &Writer{Destination: destination}
}

// Write materializes the plan: builds the new database content in a scratch
// file, backs up the existing destination if there is one, and replaces the
// destination. Returns the backup path, or "" when no backup was made.
//
// The new content is the retained rows of db (hostnames the plan neither
// removes nor updates) in their original order, followed by one synthesized
// preload-derived row per plan entry, sorted lexicographically by hostname.
func (w *Writer) Write(db *hsts.Database, plan *reconcile.Plan) (string, error) {
	scratch, err := w.buildScratch(db, plan)
	if err != nil {
		return "", err
	}

	backupPath := ""
	if _, err := os.Stat(w.Destination); err == nil {
		backupPath, err = w.backup()
		if err != nil {
			// Destination untouched; the scratch file is left behind as an
			// orphan.
			return "", err
		}
	}

	if err := w.replace(scratch); err != nil {
		return backupPath, err
	}
	return backupPath, nil
}

// buildScratch writes the full new database content to a fresh scratch file
// and returns its path. On any failure the scratch file is deleted and the
// error propagates; the destination is not involved at all.
func (w *Writer) buildScratch(db *hsts.Database, plan *reconcile.Plan) (string, error) {
	f, err := os.CreateTemp("", "wget-hsts-*")
	if err != nil {
		return "", errors.WrapIO("create", "scratch file", err)
	}
	path := f.Name()

	if err := writeContent(f, db, plan); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", errors.WrapIO("write", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", errors.WrapIO("close", path, err)
	}
	return path, nil
}

func writeContent(f *os.File, db *hsts.Database, plan *reconcile.Plan) error {
	bw := bufio.NewWriter(f)
	for _, line := range constants.DatabaseHeader {
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}

	for _, entry := range db.Entries() {
		if !plan.Retains(entry.Hostname) {
			continue
		}
		if _, err := fmt.Fprintln(bw, entry.Line()); err != nil {
			return err
		}
	}

	synthesized := make([]hsts.KnownHostEntry, 0, len(plan.Write))
	for _, p := range plan.Write {
		synthesized = append(synthesized, hsts.NewPreloadDerivedEntry(p))
	}
	sort.Slice(synthesized, func(i, j int) bool {
		return synthesized[i].Hostname < synthesized[j].Hostname
	})
	for _, entry := range synthesized {
		if _, err := fmt.Fprintln(bw, entry.Line()); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// backup compress-copies the existing destination to <destination>.bak.gz,
// probing .bak.1.gz, .bak.2.gz, ... until a free name is found. Old backups
// are never reclaimed.
func (w *Writer) backup() (string, error) {
	backupPath := w.Destination + constants.BackupSuffix
	for i := 1; ; i++ {
		if _, err := os.Stat(backupPath); os.IsNotExist(err) {
			break
		}
		backupPath = fmt.Sprintf("%s.bak.%d.gz", w.Destination, i)
	}

	src, err := os.Open(w.Destination)
	if err != nil {
		return "", errors.WrapIO("backup", w.Destination, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(backupPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		return "", errors.WrapIO("backup", backupPath, err)
	}

	gz := gzip.NewWriter(dst)
	_, err = io.Copy(gz, src)
	if cerr := gz.Close(); err == nil {
		err = cerr
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(backupPath)
		return "", errors.WrapIO("backup", backupPath, err)
	}
	return backupPath, nil
}

// replace moves the scratch file over the destination. The scratch file
// lives in the system temp directory, which may be a different filesystem;
// when the kernel refuses a cross-device rename the replace degrades to a
// non-atomic copy, accepted rather than failing the whole run.
func (w *Writer) replace(scratch string) error {
	err := os.Rename(scratch, w.Destination)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		_ = os.Remove(scratch)
		return errors.WrapIO("rename", w.Destination, err)
	}

	logging.Debug().
		Err(err).
		Str("scratch", scratch).
		Str("destination", w.Destination).
		Msg("Atomic rename unsupported across filesystems, falling back to copy")

	if err := copyFile(scratch, w.Destination); err != nil {
		_ = os.Remove(scratch)
		return err
	}
	_ = os.Remove(scratch)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.WrapIO("read", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		return errors.WrapIO("write", dst, err)
	}

	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.WrapIO("write", dst, err)
	}
	return nil
}

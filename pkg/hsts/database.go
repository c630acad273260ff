package hsts

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/agentstation/hstsync/pkg/constants"
	"github.com/agentstation/hstsync/pkg/errors"
	"github.com/agentstation/hstsync/pkg/logging"
)

// Database is the decoded known-hosts database: a hostname-keyed mapping
// that remembers insertion order. The wget file format is order-significant
// for retained rows, so plain Go maps are not enough.
type Database struct {
	entries map[string]KnownHostEntry
	order   []string
}

// NewDatabase returns an empty database.
func NewDatabase() *Database {
	return &Database{entries: make(map[string]KnownHostEntry)}
}

// Len returns the number of entries.
func (d *Database) Len() int {
	return len(d.entries)
}

// Get returns the entry for hostname, if present.
func (d *Database) Get(hostname string) (KnownHostEntry, bool) {
	e, ok := d.entries[hostname]
	return e, ok
}

// Has reports whether hostname is present.
func (d *Database) Has(hostname string) bool {
	_, ok := d.entries[hostname]
	return ok
}

// Put inserts an entry. Returns ErrDuplicateKey if the hostname is already
// present; the database format is a mapping, not a list with duplicates.
func (d *Database) Put(e KnownHostEntry) error {
	if _, ok := d.entries[e.Hostname]; ok {
		return errors.NewDuplicateKeyError("known-hosts database", e.Hostname)
	}
	d.entries[e.Hostname] = e
	d.order = append(d.order, e.Hostname)
	return nil
}

// Hostnames returns the hostnames in insertion order.
func (d *Database) Hostnames() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Entries returns the entries in insertion order.
func (d *Database) Entries() []KnownHostEntry {
	out := make([]KnownHostEntry, 0, len(d.order))
	for _, h := range d.order {
		out = append(out, d.entries[h])
	}
	return out
}

// ParseDatabase decodes a known-hosts database from r.
//
// Each line is trimmed; lines beginning with '#' and blank lines are
// skipped. Remaining lines are split on runs of whitespace and must have
// exactly five fields (hostname, port, include-subdomains as "1"/other,
// created, max-age); lines with any other field count are silently skipped,
// preserving the permissive behavior of wget's own reader. A non-integer
// numeric field or a repeated hostname is a fatal decode error.
func ParseDatabase(r io.Reader) (*Database, error) {
	return parseDatabase(r, "")
}

// ParseDatabaseFile decodes the known-hosts database at path.
func ParseDatabaseFile(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()
	return parseDatabase(f, path)
}

func parseDatabase(r io.Reader, path string) (*Database, error) {
	db := NewDatabase()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != constants.DatabaseFieldCount {
			// Tolerated, not an error. Logged so corruption stays observable.
			logging.Debug().
				Str("path", path).
				Int("line", lineNo).
				Int("fields", len(fields)).
				Msg("Skipping database line with unexpected field count")
			continue
		}

		entry, err := parseEntry(fields)
		if err != nil {
			return nil, &errors.ParseError{
				Format:  "hsts-db",
				File:    path,
				Line:    lineNo,
				Message: err.Error(),
				Err:     err,
			}
		}
		if err := db.Put(entry); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return db, nil
}

// parseEntry decodes one 5-field record. Field count is already validated.
func parseEntry(fields []string) (KnownHostEntry, error) {
	port, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return KnownHostEntry{}, errors.New("port is not an integer: " + fields[1])
	}
	created, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return KnownHostEntry{}, errors.New("created is not an integer: " + fields[3])
	}
	maxAge, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return KnownHostEntry{}, errors.New("max-age is not an integer: " + fields[4])
	}
	return KnownHostEntry{
		Hostname:          fields[0],
		Port:              port,
		IncludeSubdomains: fields[2] == "1",
		Created:           created,
		MaxAge:            maxAge,
	}, nil
}

package hsts

import (
	"encoding/json"
	"io"
	"os"

	"github.com/agentstation/hstsync/pkg/errors"
)

// preloadList mirrors the top-level structure of Chromium's
// transport_security_state_static.json. Fields beyond entries are ignored.
type preloadList struct {
	Entries []PreloadEntry `json:"entries"`
}

// ParsePreloadList decodes a Chromium-format preload list from r into a
// name-keyed mapping. Malformed JSON and repeated names are fatal decode
// errors; unknown fields on entries are ignored.
func ParsePreloadList(r io.Reader) (map[string]PreloadEntry, error) {
	var list preloadList
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return nil, errors.WrapParse("json", "", err)
	}
	entries := make(map[string]PreloadEntry, len(list.Entries))
	for _, e := range list.Entries {
		if _, ok := entries[e.Name]; ok {
			return nil, errors.NewDuplicateKeyError("preload list", e.Name)
		}
		entries[e.Name] = e
	}
	return entries, nil
}

// ParsePreloadListFile decodes the preload list at path.
func ParsePreloadListFile(path string) (map[string]PreloadEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()

	entries, err := ParsePreloadList(f)
	if err != nil {
		if pe, ok := err.(*errors.ParseError); ok {
			pe.File = path
		}
		return nil, err
	}
	return entries, nil
}

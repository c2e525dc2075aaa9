// Package workspace manages the per-address on-disk layout the CLI
// driver and REST service read and write: all_txs.json, the ABI
// file, and the run manifest, all rooted at workspace/<address>/.
//
// Grounded on original_source/spcontoolplus/crawler/BitQuery.py's
// "{workdir}/{address}/{all_txs,user_statistics,call_statistics}.json"
// layout and __main__.py's --workspace flag.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spcon-go/rolemine/pkg/models"
)

// Dir is one address's workspace subdirectory.
type Dir struct {
	root string
}

// For returns the Dir for a given workspace root and contract address,
// creating it if it does not already exist.
func For(root, address string) (Dir, error) {
	addr := strings.ToLower(address)
	path := filepath.Join(root, addr)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return Dir{}, fmt.Errorf("creating workspace directory: %w", err)
	}
	return Dir{root: path}, nil
}

func (d Dir) path(name string) string { return filepath.Join(d.root, name) }

// WriteAllTxs persists the raw call-history document.
func (d Dir) WriteAllTxs(doc models.CallHistoryDocument) error {
	return writeJSON(d.path("all_txs.json"), doc)
}

// ReadAllTxs loads a previously persisted call-history document.
func (d Dir) ReadAllTxs() (models.CallHistoryDocument, error) {
	var doc models.CallHistoryDocument
	err := readJSON(d.path("all_txs.json"), &doc)
	return doc, err
}

// WriteRaw persists an arbitrary named JSON artifact (the user/call
// statistics documents BitQuery returns alongside the main query).
func (d Dir) WriteRaw(name string, data json.RawMessage) error {
	return os.WriteFile(d.path(name), data, 0o644)
}

// WriteABI persists a contract's ABI under <address>.abi, matching
// roleminer.py:getABI_file's "first file ending in .abi" convention.
func (d Dir) WriteABI(address string, abiJSON []byte) error {
	name := strings.ToLower(address) + ".abi"
	return os.WriteFile(d.path(name), abiJSON, 0o644)
}

// FindABI locates the single *.abi file in the directory, per
// roleminer.py:getABI_file.
func (d Dir) FindABI() ([]byte, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".abi") {
			return os.ReadFile(d.path(e.Name()))
		}
	}
	return nil, fmt.Errorf("no .abi file found in %s", d.root)
}

// WriteManifest persists the final ResultManifest as manifest.json.
func (d Dir) WriteManifest(m models.ResultManifest) error {
	return writeJSON(d.path("manifest.json"), m)
}

// ReadManifest loads a previously persisted ResultManifest.
func (d Dir) ReadManifest() (models.ResultManifest, error) {
	var m models.ResultManifest
	err := readJSON(d.path("manifest.json"), &m)
	return m, err
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

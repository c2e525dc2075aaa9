// Package abi resolves 4-byte call selectors back to human-readable
// function names from a contract's ABI, for the history loader's
// function-identity step.
//
// Grounded on roleminer.py:getABIfunction_signature_mapping — which
// builds `sig = "name(type,type,...)"` for every ABI function entry
// and maps `Web3.sha3(text=sig)[0:4].hex()` back to the name. Here the
// ABI is parsed with go-ethereum's accounts/abi package and the
// selector is recomputed with its crypto.Keccak256 rather than
// re-deriving a bespoke signature string by hand.
package abi

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// Resolver maps a "0x"-prefixed 4-byte selector to its function name.
type Resolver struct {
	bySelector map[string]string
}

// Parse builds a Resolver from a contract ABI JSON document, the same
// artifact workspace.Dir.FindABI reads from workspace/<address>/*.abi.
func Parse(abiJSON []byte) (*Resolver, error) {
	parsed, err := gethabi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return nil, fmt.Errorf("parsing abi: %w", err)
	}

	r := &Resolver{bySelector: make(map[string]string, len(parsed.Methods))}
	for name, method := range parsed.Methods {
		selector := "0x" + hex.EncodeToString(method.ID)
		r.bySelector[selector] = name
	}
	return r, nil
}

// Resolve looks up selector (a "0x"-prefixed 4-byte hex string) against
// the parsed ABI. Returns ok=false when the selector is unknown —
// callers fall back to the selector hex itself, per
// RecordsFromDocument's contract.
func (r *Resolver) Resolve(selector string) (string, bool) {
	if r == nil {
		return "", false
	}
	name, ok := r.bySelector[strings.ToLower(selector)]
	return name, ok
}

// Selector computes the 4-byte selector of a canonical function
// signature ("name(type,type)"), for callers that need to go the other
// direction (tests, the static analyzer's function-name normalization).
func Selector(signature string) string {
	hash := crypto.Keccak256([]byte(signature))
	return "0x" + hex.EncodeToString(hash[:4])
}

// rawABIEntry mirrors the subset of an ABI JSON object this package
// inspects directly, for callers that only need function names without
// building a full gethabi.ABI (e.g. the deny-list / reporting path).
type rawABIEntry struct {
	Type            string `json:"type"`
	Name            string `json:"name"`
	StateMutability string `json:"stateMutability"`
}

// FunctionNames extracts every non-view function name from a raw ABI
// document, mirroring roleminer.py:getABIfunctions.
func FunctionNames(abiJSON []byte) ([]string, error) {
	var entries []rawABIEntry
	if err := json.Unmarshal(abiJSON, &entries); err != nil {
		return nil, fmt.Errorf("parsing abi: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type == "function" && e.StateMutability != "view" {
			names = append(names, e.Name)
		}
	}
	return names, nil
}

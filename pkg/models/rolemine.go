// Package models holds the wire-facing types shared between the mining
// engine, the CLI driver, and the REST service: call-history records,
// mined roles, derived security policies, and the persisted result
// manifest.
package models

import "time"

// CallRecord is one (caller, function, count, success) observation from
// the transaction-history crawler, already flattened out of the
// BitQuery-shaped document (see CallHistoryDocument).
type CallRecord struct {
	Caller   string `json:"caller"`
	Function string `json:"function"`
	Count    int64  `json:"count"`
	Success  bool   `json:"success"`
}

// FlexBool decodes a JSON value that may be a bool or a 0/1 integer,
// matching the success field of a BitQuery smartContractCalls document.
type FlexBool bool

// UnmarshalJSON accepts `true`/`false`, `1`/`0`, or a quoted "1"/"0".
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	s := string(data)
	switch s {
	case "true", "1", `"1"`, `"true"`:
		*b = true
	case "false", "0", `"0"`, `"false"`:
		*b = false
	default:
		*b = false
	}
	return nil
}

// CallHistoryDocument mirrors the crawler's persisted all_txs.json shape:
// data.ethereum.smartContractCalls[*].
type CallHistoryDocument struct {
	Data struct {
		Ethereum struct {
			SmartContractCalls []SmartContractCall `json:"smartContractCalls"`
		} `json:"ethereum"`
	} `json:"data"`
}

// SmartContractCall is a single raw element of smartContractCalls.
type SmartContractCall struct {
	Caller struct {
		Address string `json:"address"`
	} `json:"caller"`
	Count              int64    `json:"count"`
	SmartContractMethod struct {
		Name          *string `json:"name"`
		SignatureHash string  `json:"signatureHash"`
	} `json:"smartContractMethod"`
	Success FlexBool `json:"success"`
}

// Role is the address-set/function-set pair handed to downstream
// consumers — a FinalRole materialized through the UserMap.
type Role struct {
	Users     []string `json:"users"`
	Functions []string `json:"functions"`
}

// SecurityPolicy is one derived integrity or separation-of-duty rule.
type SecurityPolicy struct {
	Role                Role     `json:"role"`
	Data                []string `json:"data"`
	PrivilegedFunctions []string `json:"privilegedFunctions"`
	Kind                string   `json:"kind"` // "integrity" | "separation"
}

const (
	PolicyKindIntegrity  = "integrity"
	PolicyKindSeparation = "separation"
)

// RWSummary is the static analyzer's per-function read/write summary.
// A function absent from all three maps is treated as touching nothing
// (spec: StaticAnalysisMissing partial-data semantics).
type RWSummary struct {
	Reads  map[string][]string `json:"reads"`  // conditional-position reads, transitive
	Reads2 map[string][]string `json:"reads2"` // all reads, transitive
	Writes map[string][]string `json:"writes"` // writes, transitive
}

// WarningKind enumerates the non-fatal conditions a mining run can record.
type WarningKind string

const (
	WarningBudgetExceeded        WarningKind = "BudgetExceeded"
	WarningStaticAnalysisMissing WarningKind = "StaticAnalysisMissing"
)

// Warning is a typed, non-fatal condition attached to a MiningRun.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// MiningRun is the in-memory/JSON record of one pipeline execution.
type MiningRun struct {
	ID          string    `json:"id"`
	Address     string    `json:"address"`
	Status      string    `json:"status"` // "pending"/"running"/"done"/"failed"
	Roles       []Role    `json:"roles,omitempty"`
	Policies    []SecurityPolicy `json:"policies,omitempty"`
	Warnings    []Warning `json:"warnings,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt,omitempty"`
	BasicRoleN  int       `json:"basicRoleCount"`
	UserCount   int       `json:"userCount"`
	FunctionCount int     `json:"functionCount"`
}

// ResultManifest is the persisted per-address artifact written under
// workspace/<address>/manifest.json.
type ResultManifest struct {
	Address     string           `json:"address"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Roles       []Role           `json:"roles"`
	Policies    []SecurityPolicy `json:"policies"`
	Warnings    []Warning        `json:"warnings"`
}

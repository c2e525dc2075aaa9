package rolemine

import (
	"strings"

	"github.com/spcon-go/rolemine/pkg/models"
)

const contractCreationFunction = "Contract Creation"

// LoadHistory is C1: HistoryLoader. It discards creation/failed records,
// canonicalizes callers, assigns dense UserIds in order of first sight,
// and builds the permission and frequency matrices. Records are
// expected to already carry a resolved function identifier (name or
// selector hex) — see RecordsFromDocument for selector resolution.
//
// Grounded in roleminer.py:lightweightrolemining's ingestion loop: the
// IdCounter closure there is this function's userIndex map; the
// function!="Contract Creation" and success tolerance checks are
// reproduced verbatim.
func LoadHistory(records []models.CallRecord) *Dataset {
	userIndex := make(map[string]UserID)
	var userMap []string

	funcIndex := make(map[string]int)
	var functions []string

	// counts[user][funcID] accumulated via a nested map keyed by
	// function id, then densified once the universe is known.
	counts := make(map[UserID]map[int]int64)

	getUser := func(addr string) UserID {
		addr = strings.ToLower(addr)
		if id, ok := userIndex[addr]; ok {
			return id
		}
		id := UserID(len(userMap))
		userIndex[addr] = id
		userMap = append(userMap, addr)
		return id
	}

	for _, rec := range records {
		if rec.Function == contractCreationFunction || !rec.Success {
			continue
		}
		fn := rec.Function

		fid, ok := funcIndex[fn]
		if !ok {
			fid = len(functions)
			funcIndex[fn] = fid
			functions = append(functions, fn)
		}

		u := getUser(rec.Caller)
		if counts[u] == nil {
			counts[u] = make(map[int]int64)
		}
		counts[u][fid] += rec.Count
	}

	nUsers := len(userMap)
	nFuncs := len(functions)

	P := make([][]bool, nUsers)
	F := make([][]int64, nUsers)
	for u := 0; u < nUsers; u++ {
		P[u] = make([]bool, nFuncs)
		F[u] = make([]int64, nFuncs)
		for fid, c := range counts[UserID(u)] {
			F[u][fid] = c
			P[u][fid] = c > 0
		}
	}

	return &Dataset{
		UserMap:   userMap,
		Functions: functions,
		P:         P,
		F:         F,
		funcIndex: funcIndex,
	}
}

// RecordsFromDocument flattens a CallHistoryDocument (the crawler's
// all_txs.json shape) into []models.CallRecord, resolving a null
// smartContractMethod.name through resolve and falling back to the
// selector hex when it cannot be resolved — mirroring
// roleminer.py:lightweightrolemining's
// `usercall["smartContractMethod"]["name"] if ... else bytes4_mapping_func(...)`.
func RecordsFromDocument(doc models.CallHistoryDocument, resolve SelectorResolver) []models.CallRecord {
	calls := doc.Data.Ethereum.SmartContractCalls
	out := make([]models.CallRecord, 0, len(calls))
	for _, call := range calls {
		fn := call.SmartContractMethod.SignatureHash
		if call.SmartContractMethod.Name != nil && *call.SmartContractMethod.Name != "" {
			fn = *call.SmartContractMethod.Name
		} else if resolve != nil {
			if name, ok := resolve(call.SmartContractMethod.SignatureHash); ok {
				fn = name
			}
		}
		out = append(out, models.CallRecord{
			Caller:   call.Caller.Address,
			Function: fn,
			Count:    call.Count,
			Success:  bool(call.Success),
		})
	}
	return out
}

// SuccessfulRecordCount returns the number of records that survive the
// Contract-Creation/failure filter — the quantity spec §7's
// InsufficientHistory threshold (min_history_records) is measured
// against.
func SuccessfulRecordCount(records []models.CallRecord) int {
	n := 0
	for _, rec := range records {
		if rec.Function == contractCreationFunction || !rec.Success {
			continue
		}
		n++
	}
	return n
}

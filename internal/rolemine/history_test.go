package rolemine

import (
	"testing"

	"github.com/spcon-go/rolemine/pkg/models"
)

func TestLoadHistory_FiltersCreationAndFailures(t *testing.T) {
	records := []models.CallRecord{
		{Caller: "0xAAA", Function: "Contract Creation", Count: 1, Success: true},
		{Caller: "0xAAA", Function: "deposit", Count: 1, Success: false},
		{Caller: "0xAAA", Function: "deposit", Count: 3, Success: true},
		{Caller: "0xBBB", Function: "withdraw", Count: 2, Success: true},
	}

	d := LoadHistory(records)

	if d.NumUsers() != 2 {
		t.Fatalf("expected 2 users, got %d", d.NumUsers())
	}
	if d.NumFunctions() != 2 {
		t.Fatalf("expected 2 functions, got %d", d.NumFunctions())
	}

	aIdx := indexOf(d.UserMap, "0xaaa")
	depositIdx := indexOf(d.Functions, "deposit")
	if aIdx < 0 || depositIdx < 0 {
		t.Fatalf("expected canonical lowercase user and deposit function to be present")
	}
	if !d.P[aIdx][depositIdx] {
		t.Errorf("expected P[aaa][deposit] true")
	}
	if d.F[aIdx][depositIdx] != 3 {
		t.Errorf("expected F[aaa][deposit] == 3 (the failed call excluded), got %d", d.F[aIdx][depositIdx])
	}
}

func TestLoadHistory_CanonicalizesAddressCase(t *testing.T) {
	records := []models.CallRecord{
		{Caller: "0xAbC", Function: "f", Count: 1, Success: true},
		{Caller: "0xabc", Function: "f", Count: 1, Success: true},
	}
	d := LoadHistory(records)
	if d.NumUsers() != 1 {
		t.Fatalf("expected mixed-case addresses to canonicalize to one user, got %d", d.NumUsers())
	}
	if d.F[0][0] != 2 {
		t.Errorf("expected counts to accumulate across case variants, got %d", d.F[0][0])
	}
}

func TestSuccessfulRecordCount(t *testing.T) {
	records := []models.CallRecord{
		{Function: "Contract Creation", Success: true},
		{Function: "f", Success: false},
		{Function: "f", Success: true},
		{Function: "g", Success: true},
	}
	if got := SuccessfulRecordCount(records); got != 2 {
		t.Errorf("SuccessfulRecordCount() = %d, want 2", got)
	}
}

func TestRecordsFromDocument_ResolvesSelector(t *testing.T) {
	name := "transfer"
	doc := models.CallHistoryDocument{}
	doc.Data.Ethereum.SmartContractCalls = []models.SmartContractCall{
		{
			Count:   5,
			Success: true,
		},
	}
	doc.Data.Ethereum.SmartContractCalls[0].Caller.Address = "0xCCC"
	doc.Data.Ethereum.SmartContractCalls[0].SmartContractMethod.Name = nil
	doc.Data.Ethereum.SmartContractCalls[0].SmartContractMethod.SignatureHash = "0xa9059cbb"

	resolve := func(selector string) (string, bool) {
		if selector == "0xa9059cbb" {
			return name, true
		}
		return "", false
	}

	records := RecordsFromDocument(doc, resolve)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Function != "transfer" {
		t.Errorf("expected resolved function name %q, got %q", "transfer", records[0].Function)
	}
}

func TestRecordsFromDocument_FallsBackToSelectorWhenUnresolved(t *testing.T) {
	doc := models.CallHistoryDocument{}
	doc.Data.Ethereum.SmartContractCalls = []models.SmartContractCall{{Count: 1, Success: true}}
	doc.Data.Ethereum.SmartContractCalls[0].SmartContractMethod.SignatureHash = "0xdeadbeef"

	records := RecordsFromDocument(doc, func(string) (string, bool) { return "", false })
	if records[0].Function != "0xdeadbeef" {
		t.Errorf("expected fallback to selector hex, got %q", records[0].Function)
	}
}

func indexOf(items []string, target string) int {
	for i, v := range items {
		if v == target {
			return i
		}
	}
	return -1
}

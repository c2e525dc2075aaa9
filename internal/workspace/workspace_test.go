package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spcon-go/rolemine/pkg/models"
)

func TestFor_LowercasesAddressAndCreatesDirectory(t *testing.T) {
	root := t.TempDir()
	d, err := For(root, "0xABCDEF")
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	want := filepath.Join(root, "0xabcdef")
	if d.path("x") != filepath.Join(want, "x") {
		t.Fatalf("path(x) = %q, want it under %q", d.path("x"), want)
	}
	if info, err := os.Stat(want); err != nil || !info.IsDir() {
		t.Fatalf("expected directory %q to exist: %v", want, err)
	}
}

func TestWriteReadAllTxs_RoundTrips(t *testing.T) {
	root := t.TempDir()
	d, err := For(root, "0xabc")
	if err != nil {
		t.Fatalf("For: %v", err)
	}

	var doc models.CallHistoryDocument
	doc.Data.Ethereum.SmartContractCalls = []models.SmartContractCall{
		{Count: 5},
	}

	if err := d.WriteAllTxs(doc); err != nil {
		t.Fatalf("WriteAllTxs: %v", err)
	}

	got, err := d.ReadAllTxs()
	if err != nil {
		t.Fatalf("ReadAllTxs: %v", err)
	}
	if len(got.Data.Ethereum.SmartContractCalls) != 1 || got.Data.Ethereum.SmartContractCalls[0].Count != 5 {
		t.Fatalf("ReadAllTxs = %+v, want one call with count 5", got)
	}
}

func TestFindABI_LocatesSingleABIFile(t *testing.T) {
	root := t.TempDir()
	d, err := For(root, "0xabc")
	if err != nil {
		t.Fatalf("For: %v", err)
	}

	if err := d.WriteABI("0xabc", []byte(`[]`)); err != nil {
		t.Fatalf("WriteABI: %v", err)
	}

	data, err := d.FindABI()
	if err != nil {
		t.Fatalf("FindABI: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("FindABI = %q, want []", data)
	}
}

func TestFindABI_ErrorsWhenMissing(t *testing.T) {
	root := t.TempDir()
	d, err := For(root, "0xabc")
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	if _, err := d.FindABI(); err == nil {
		t.Fatal("FindABI: expected error when no .abi file exists")
	}
}

func TestWriteReadManifest_RoundTrips(t *testing.T) {
	root := t.TempDir()
	d, err := For(root, "0xabc")
	if err != nil {
		t.Fatalf("For: %v", err)
	}

	m := models.ResultManifest{
		Address:     "0xabc",
		GeneratedAt: time.Unix(0, 0).UTC(),
	}
	if err := d.WriteManifest(m); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	got, err := d.ReadManifest()
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if got.Address != "0xabc" {
		t.Fatalf("ReadManifest.Address = %q, want 0xabc", got.Address)
	}
}

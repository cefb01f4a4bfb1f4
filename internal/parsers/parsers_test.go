package parsers

import (
	"os"
	"path/filepath"
	"testing"

	"recon-matching-engine/pkg/errors"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEntryParserParsesAliases(t *testing.T) {
	// Headers use export-flavored aliases rather than canonical names.
	path := writeTempCSV(t, `txn_id,iban,value,booking_date,narrative,remittance_info
e-1,DE001,"1,500.00",2024-03-15,Invoice INV-001,INV-001
e-2,DE001,$200.50,2024-03-16,Subscription,PAY-42
`)

	parser := &EntryParser{}
	entries, stats, err := parser.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if stats.RowsValid != 2 || len(entries) != 2 {
		t.Fatalf("expected 2 valid rows, got %+v", stats)
	}

	first := entries[0]
	if first.ID != "e-1" || first.AccountRef != "DE001" || first.Reference != "INV-001" {
		t.Errorf("aliased columns mis-mapped: %+v", first)
	}
	if first.Amount.String() != "1500" {
		t.Errorf("amount should tolerate thousand separators, got %s", first.Amount)
	}
	if entries[1].Amount.String() != "200.5" {
		t.Errorf("amount should tolerate currency symbols, got %s", entries[1].Amount)
	}
	if first.OccurredOn.Format("2006-01-02") != "2024-03-15" {
		t.Errorf("date mis-parsed: %v", first.OccurredOn)
	}
}

func TestEntryParserIsolatesBadRows(t *testing.T) {
	path := writeTempCSV(t, `id,amount,date,description,reference
e-1,100.00,2024-03-15,ok,REF-1
e-2,not-a-number,2024-03-15,bad amount,REF-2
e-3,50.00,never,bad date,REF-3
e-4,75.00,2024-03-18,ok,REF-4
`)

	parser := &EntryParser{}
	entries, stats, err := parser.ParseFile(path)
	if err != nil {
		t.Fatalf("row errors must not abort the parse: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 surviving entries, got %d", len(entries))
	}
	if len(stats.RowErrors) != 2 {
		t.Fatalf("expected 2 row errors, got %d", len(stats.RowErrors))
	}
	if stats.RowErrors[0].Line != 3 {
		t.Errorf("first error should point at line 3, got %d", stats.RowErrors[0].Line)
	}
}

func TestEntryParserMissingRequiredColumn(t *testing.T) {
	path := writeTempCSV(t, `id,description
e-1,no amount column
`)

	parser := &EntryParser{}
	_, _, err := parser.ParseFile(path)
	if !errors.IsInvalidInput(err) {
		t.Fatalf("missing required column should abort with a validation error, got %v", err)
	}
}

func TestEntryParserMissingFile(t *testing.T) {
	parser := &EntryParser{}
	_, _, err := parser.ParseFile(filepath.Join(t.TempDir(), "absent.csv"))
	if !errors.IsInvalidInput(err) {
		t.Fatalf("missing file should be a validation error, got %v", err)
	}
}

func TestParseFixtureFiles(t *testing.T) {
	entryParser := &EntryParser{}
	entries, entryStats, err := entryParser.ParseFile(filepath.Join("testdata", "entries.csv"))
	if err != nil {
		t.Fatalf("entries fixture failed: %v", err)
	}
	if entryStats.RowsValid != 4 || len(entries) != 4 {
		t.Errorf("expected 4 entries, got %+v", entryStats)
	}

	recordParser := &RecordParser{}
	records, recordStats, err := recordParser.ParseFile(filepath.Join("testdata", "records.csv"))
	if err != nil {
		t.Fatalf("records fixture failed: %v", err)
	}
	if recordStats.RowsValid != 4 || len(records) != 4 {
		t.Errorf("expected 4 records, got %+v", recordStats)
	}
}

func TestRecordParser(t *testing.T) {
	path := writeTempCSV(t, `invoice_id,customer_id,invoice_amount,due,invoice_number,state
r-1,cust-9,1500.00,2024-03-20,INV-001,open
r-2,cust-9,200.00,2024-03-25,PAY-42,
`)

	parser := &RecordParser{}
	records, stats, err := parser.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if stats.RowsValid != 2 {
		t.Fatalf("expected 2 valid rows, got %+v", stats)
	}

	if records[0].ID != "r-1" || records[0].OwnerRef != "cust-9" || records[0].Reference != "INV-001" {
		t.Errorf("aliased columns mis-mapped: %+v", records[0])
	}
	if records[1].Status != "open" {
		t.Errorf("blank status should default to open, got %q", records[1].Status)
	}
}

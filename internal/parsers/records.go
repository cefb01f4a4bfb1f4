package parsers

import (
	"encoding/csv"
	"io"
	"time"

	"recon-matching-engine/internal/models"
	"recon-matching-engine/internal/normalize"
)

// recordAliases maps logical record fields to the header names seen across
// ledger and invoicing exports.
var recordAliases = map[string][]string{
	"id":          {"id", "record_id", "invoice_id", "transaction_id"},
	"owner":       {"owner", "owner_ref", "counterparty", "customer_id", "vendor_id"},
	"amount":      {"amount", "value", "expected_amount", "invoice_amount"},
	"due_date":    {"due_date", "due", "expected_date", "date"},
	"reference":   {"reference", "ref", "invoice_number", "payment_reference"},
	"description": {"description", "memo", "details"},
	"status":      {"status", "state"},
}

var recordRequired = []string{"id", "amount", "due_date"}

// RecordParser reads open internal records from CSV.
type RecordParser struct {
	// Timezone is the reference timezone for calendar-day normalization.
	// Nil defaults to UTC.
	Timezone *time.Location
}

// ParseFile reads every record from the file at path. Malformed rows are
// collected in the returned stats; only structural failures abort the parse.
func (p *RecordParser) ParseFile(path string) ([]*models.InternalRecord, *ParseStats, error) {
	file, reader, err := openCSV(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	return p.parse(reader)
}

func (p *RecordParser) parse(reader *csv.Reader) ([]*models.InternalRecord, *ParseStats, error) {
	stats := &ParseStats{}

	header, err := readHeader(reader)
	if err != nil {
		return nil, stats, err
	}
	columns, err := buildColumnMap(header, recordAliases, recordRequired)
	if err != nil {
		return nil, stats, err
	}

	var records []*models.InternalRecord
	line := 1
	for {
		line++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.addError(line, "unreadable row", err)
			continue
		}
		stats.RowsRead++

		record, perr := p.recordFromRow(columns, row)
		if perr != nil {
			stats.addError(line, "invalid record row", perr)
			continue
		}
		records = append(records, record)
		stats.RowsValid++
	}

	return records, stats, nil
}

func (p *RecordParser) recordFromRow(columns columnMap, row []string) (*models.InternalRecord, error) {
	amount, err := normalize.Amount(columns.get(row, "amount"))
	if err != nil {
		return nil, err
	}
	dueDate, err := normalize.ParseDay(columns.get(row, "due_date"), p.Timezone)
	if err != nil {
		return nil, err
	}

	status := models.RecordStatus(columns.get(row, "status"))
	if status == "" {
		status = models.RecordOpen
	}

	record := &models.InternalRecord{
		ID:          columns.get(row, "id"),
		OwnerRef:    columns.get(row, "owner"),
		Amount:      amount,
		DueDate:     dueDate,
		Reference:   columns.get(row, "reference"),
		Description: columns.get(row, "description"),
		Status:      status,
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}

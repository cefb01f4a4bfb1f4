package parsers

import (
	"encoding/csv"
	"io"
	"time"

	"recon-matching-engine/internal/models"
	"recon-matching-engine/internal/normalize"
)

// entryAliases maps logical entry fields to the header names seen across
// bank statement exports.
var entryAliases = map[string][]string{
	"id":          {"id", "entry_id", "transaction_id", "txn_id"},
	"account":     {"account", "account_ref", "account_id", "iban"},
	"amount":      {"amount", "value", "transaction_amount"},
	"date":        {"date", "occurred_on", "transaction_date", "booking_date"},
	"description": {"description", "memo", "details", "narrative"},
	"reference":   {"reference", "ref", "payment_reference", "remittance_info"},
}

var entryRequired = []string{"id", "amount", "date"}

// EntryParser reads bank statement entries from CSV.
type EntryParser struct {
	// Timezone is the reference timezone for calendar-day normalization.
	// Nil defaults to UTC.
	Timezone *time.Location
}

// ParseFile reads every entry from the file at path. Malformed rows are
// collected in the returned stats; only structural failures (missing file,
// unusable header) abort the parse.
func (p *EntryParser) ParseFile(path string) ([]*models.ExternalEntry, *ParseStats, error) {
	file, reader, err := openCSV(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	return p.parse(reader)
}

func (p *EntryParser) parse(reader *csv.Reader) ([]*models.ExternalEntry, *ParseStats, error) {
	stats := &ParseStats{}

	header, err := readHeader(reader)
	if err != nil {
		return nil, stats, err
	}
	columns, err := buildColumnMap(header, entryAliases, entryRequired)
	if err != nil {
		return nil, stats, err
	}

	var entries []*models.ExternalEntry
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

		entry, perr := p.entryFromRow(columns, row)
		if perr != nil {
			stats.addError(line, "invalid entry row", perr)
			continue
		}
		entries = append(entries, entry)
		stats.RowsValid++
	}

	return entries, stats, nil
}

func (p *EntryParser) entryFromRow(columns columnMap, row []string) (*models.ExternalEntry, error) {
	amount, err := normalize.Amount(columns.get(row, "amount"))
	if err != nil {
		return nil, err
	}
	occurredOn, err := normalize.ParseDay(columns.get(row, "date"), p.Timezone)
	if err != nil {
		return nil, err
	}

	entry := &models.ExternalEntry{
		ID:          columns.get(row, "id"),
		AccountRef:  columns.get(row, "account"),
		Amount:      amount,
		OccurredOn:  occurredOn,
		Description: columns.get(row, "description"),
		Reference:   columns.get(row, "reference"),
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	return entry, nil
}

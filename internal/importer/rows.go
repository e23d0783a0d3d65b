// Package importer reconciles externally supplied CSV rows against the
// existing catalog of machines, part definitions and installed parts.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrEmptyInput is returned when the text holds no data rows.
var ErrEmptyInput = errors.New("csv contains no data rows")

// Column positions of the batch format.
const (
	colMachineName = iota
	colMachineID   // ignored
	colPartName
	colCategory
	colSerialNumber
	colInstallDate
	colLifetimeDays
)

var (
	lineBreakRe         = regexp.MustCompile(`\r\n|\r|\n`)
	closingQuoteSpaceRe = regexp.MustCompile(`"[ \t]+(,|$)`)
)

// Row is a validated data row.
type Row struct {
	Line            int
	MachineName     string
	PartName        string
	Category        string
	SerialNumber    string
	InstallDateRaw  string
	LifetimeDaysRaw string
}

// RowError explains why a line could not be turned into a Row.
type RowError struct {
	Line   int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// RowResult is either a Row or the error that rejected the line.
type RowResult struct {
	Row Row
	Err error
}

// ParseRows splits text into data rows and validates each against the batch
// schema. The first non-blank line is the header and is discarded.
func ParseRows(text string) ([]RowResult, error) {
	text = strings.TrimPrefix(text, "\ufeff")

	var lines []int
	raw := lineBreakRe.Split(text, -1)
	for i, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, i)
		}
	}
	if len(lines) < 2 {
		return nil, ErrEmptyInput
	}

	results := make([]RowResult, 0, len(lines)-1)
	for _, i := range lines[1:] {
		row, err := parseRow(raw[i], i+1)
		results = append(results, RowResult{Row: row, Err: err})
	}
	return results, nil
}

func parseRow(line string, lineNo int) (Row, error) {
	cells, err := splitLine(line)
	if err != nil {
		return Row{}, &RowError{Line: lineNo, Reason: err.Error()}
	}

	cell := func(i int) string {
		if i < len(cells) {
			return cells[i]
		}
		return ""
	}

	row := Row{
		Line:            lineNo,
		MachineName:     cell(colMachineName),
		PartName:        cell(colPartName),
		Category:        cell(colCategory),
		SerialNumber:    cell(colSerialNumber),
		InstallDateRaw:  cell(colInstallDate),
		LifetimeDaysRaw: cell(colLifetimeDays),
	}

	var missing []string
	if row.MachineName == "" {
		missing = append(missing, "machine name")
	}
	if row.PartName == "" {
		missing = append(missing, "part name")
	}
	if row.SerialNumber == "" {
		missing = append(missing, "serial number")
	}
	if len(missing) > 0 {
		return Row{}, &RowError{Line: lineNo, Reason: "missing " + strings.Join(missing, ", ")}
	}
	return row, nil
}

// splitLine splits one line on commas, honouring double-quoted fields, and
// returns trimmed cells. Lines that are not strict CSV are retried leniently,
// after dropping whitespace between a closing quote and the next comma.
func splitLine(line string) ([]string, error) {
	record, err := readRecord(line, false)
	if err != nil {
		record, err = readRecord(closingQuoteSpaceRe.ReplaceAllString(line, `"$1`), true)
	}
	if err != nil {
		return nil, fmt.Errorf("malformed line: %w", err)
	}
	for i, c := range record {
		record[i] = strings.TrimSpace(c)
	}
	return record, nil
}

func readRecord(line string, lazy bool) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = lazy
	r.TrimLeadingSpace = true
	return r.Read()
}

// internal/recipients/loader.go
package recipients

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Row is one recipient's rendering context: every column of the input file,
// always including Name and Email. Rows are transient; they are never
// persisted into the campaign store.
type Row map[string]string

func (r Row) Name() string  { return strings.TrimSpace(r["Name"]) }
func (r Row) Email() string { return strings.TrimSpace(r["Email"]) }

// LoadCSV parses a delimited recipient list. Column names are trimmed, the
// Name and Email columns are mandatory, and rows with an empty Email are
// dropped before any send is attempted.
func LoadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1 // short rows are padded, not rejected
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("recipient file is empty")
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	if !hasColumn(header, "Name") || !hasColumn(header, "Email") {
		return nil, fmt.Errorf("file must contain 'Name' and 'Email' columns")
	}

	rows := []Row{}
	for _, rec := range records[1:] {
		row := Row{}
		for i, col := range header {
			if i < len(rec) {
				row[col] = strings.TrimSpace(rec[i])
			} else {
				row[col] = ""
			}
		}
		if row.Email() == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadCSVFile reads a recipient list from disk.
func LoadCSVFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

func hasColumn(header []string, name string) bool {
	for _, h := range header {
		if h == name {
			return true
		}
	}
	return false
}

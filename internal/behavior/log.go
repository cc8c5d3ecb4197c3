package behavior

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// logRow is one line of a scanner task log. StimDescrip and StimType are
// empty when the scanner wrote None.
type logRow struct {
	Type          string
	TimeFromStart float64
	StimDescrip   string
	StimType      string
}

// readTaskLog parses a scanner CSV. Columns beyond the four we use are
// ignored; the scanner adds bookkeeping columns freely between template
// versions.
func readTaskLog(path string) ([]logRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open task log: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read task log header %s: %w", path, err)
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"type", "timefromstart"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("task log %s missing column %q", path, required)
		}
	}

	var rows []logRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read task log %s: %w", path, err)
		}
		row := logRow{
			Type:        field(record, cols, "type"),
			StimDescrip: field(record, cols, "stimdescrip"),
			StimType:    field(record, cols, "stimtype"),
		}
		if raw := field(record, cols, "timefromstart"); raw != "" {
			row.TimeFromStart, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("task log %s: bad timefromstart %q", path, raw)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func field(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	value := strings.TrimSpace(record[i])
	if value == "None" || value == "none" {
		return ""
	}
	return value
}

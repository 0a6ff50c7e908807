package icp

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/mathew-h/experiment-tracking-sub000/pkg/utils"
)

var requiredColumns = []string{"label", "element label", "concentration", "intensity"}

// ReadCSV reads a long-format instrument export. Headers are matched ignoring case; "Type" is
// optional. Numeric cells that do not parse are read as missing.
func ReadCSV(r io.Reader) ([]Measurement, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read ICP export: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("ICP export is empty")
	}

	index := map[string]int{}
	for i, name := range records[0] {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	missing := []string{}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("ICP export is missing required columns: %s", strings.Join(missing, ", "))
	}

	cell := func(record []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	rows := make([]Measurement, 0, len(records)-1)
	for _, record := range records[1:] {
		if strings.TrimSpace(strings.Join(record, "")) == "" {
			continue
		}
		conc, _ := utils.ToFloat(cell(record, "concentration"))
		intensity, _ := utils.ToFloat(cell(record, "intensity"))
		rows = append(rows, Measurement{
			Label:         cell(record, "label"),
			ElementLabel:  cell(record, "element label"),
			Concentration: conc,
			Intensity:     intensity,
			Type:          cell(record, "type"),
		})
	}
	return rows, nil
}

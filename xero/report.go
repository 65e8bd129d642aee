package xero

import (
	"encoding/json"
	"strconv"
)

// Report is a Xero report: a tree of rows, where section rows nest their
// detail rows under Rows.
type Report struct {
	ReportID   string `json:"ReportID"`
	ReportName string `json:"ReportName"`
	Rows       []Row  `json:"Rows"`
}

// Row is one node of the report tree. Section rows carry a Title and nested
// Rows; detail and summary rows carry Cells.
type Row struct {
	RowType string `json:"RowType"`
	Title   string `json:"Title"`
	Cells   []Cell `json:"Cells"`
	Rows    []Row  `json:"Rows"`
}

// Cell is a single report cell. Xero usually emits values as strings but
// numbers appear in some report variants, so both are accepted.
type Cell struct {
	Value string
}

func (c *Cell) UnmarshalJSON(b []byte) error {
	var aux struct {
		Value any `json:"Value"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	switch v := aux.Value.(type) {
	case string:
		c.Value = v
	case float64:
		c.Value = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return nil
}

// Float parses the cell value as a number, returning 0 when it is empty or
// non-numeric (label cells).
func (c Cell) Float() (float64, bool) {
	v, err := strconv.ParseFloat(c.Value, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FindReportValue walks the row tree depth-first for the first row whose
// Title or RowType matches label and returns its first cell as a number.
// Returns 0 when no row matches anywhere in the tree.
func FindReportValue(rows []Row, label string) float64 {
	for _, row := range rows {
		if (row.Title == label || row.RowType == label) && len(row.Cells) > 0 {
			v, _ := row.Cells[0].Float()
			return v
		}
		if v := FindReportValue(row.Rows, label); v != 0 {
			return v
		}
	}
	return 0
}

// FindReportRow returns the first row whose Title or RowType matches label,
// searching nested rows depth-first.
func FindReportRow(rows []Row, label string) *Row {
	for i := range rows {
		if rows[i].Title == label || rows[i].RowType == label {
			return &rows[i]
		}
		if r := FindReportRow(rows[i].Rows, label); r != nil {
			return r
		}
	}
	return nil
}

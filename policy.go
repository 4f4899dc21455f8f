package scenarios

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	policyCaseColumn = "case_id"
	policyYearColumn = "year"

	// PolicyAllCases marks policy rows that apply to every case.
	PolicyAllCases = "all"
)

// PolicyTable is one emissions or policy table, indexed by case_id and,
// when present, year.
type PolicyTable struct {
	Name    string
	Columns []string
	Rows    []map[string]string

	byCase  map[string][]int
	hasYear bool
}

// NewPolicyTable builds a table from a header and its records. The header must
// carry a case_id column.
func NewPolicyTable(name string, header []string, records [][]string) (*PolicyTable, error) {
	columns := make([]string, len(header))
	caseIdx := -1
	for i, column := range header {
		columns[i] = strings.TrimSpace(column)
		if strings.EqualFold(columns[i], policyCaseColumn) {
			columns[i] = policyCaseColumn
			caseIdx = i
		}
		if strings.EqualFold(columns[i], policyYearColumn) {
			columns[i] = policyYearColumn
		}
	}
	if caseIdx < 0 {
		return nil, &SchemaError{Param: name, Reason: "has no " + policyCaseColumn + " column"}
	}

	table := &PolicyTable{
		Name:    name,
		Columns: columns,
		Rows:    make([]map[string]string, 0, len(records)),
		byCase:  map[string][]int{},
	}
	for _, column := range columns {
		if column == policyYearColumn {
			table.hasYear = true
		}
	}
	for line, record := range records {
		if len(record) > len(columns) {
			return nil, fmt.Errorf("scenarios: policy table %s row %d has %d fields, header has %d", name, line+1, len(record), len(columns))
		}
		row := make(map[string]string, len(columns))
		for i, column := range columns {
			if i < len(record) {
				row[column] = strings.TrimSpace(record[i])
			}
		}
		caseID := row[policyCaseColumn]
		if caseID == "" {
			continue
		}
		table.byCase[caseID] = append(table.byCase[caseID], len(table.Rows))
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// HasYearColumn reports whether rows are keyed by year as well as case.
func (t *PolicyTable) HasYearColumn() bool {
	return t != nil && t.hasYear
}

// RowsFor returns the rows applying to caseID in year, including rows marked
// for all cases. year is ignored when the table has no year column.
func (t *PolicyTable) RowsFor(caseID string, year int) []map[string]string {
	if t == nil {
		return nil
	}
	var out []map[string]string
	for _, key := range []string{caseID, PolicyAllCases} {
		for _, idx := range t.byCase[key] {
			row := t.Rows[idx]
			if t.hasYear && !yearMatches(row[policyYearColumn], year) {
				continue
			}
			out = append(out, row)
		}
	}
	return out
}

// Cases returns the case ids referenced by the table.
func (t *PolicyTable) Cases() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.byCase))
	for caseID := range t.byCase {
		out = append(out, caseID)
	}
	sort.Strings(out)
	return out
}

func yearMatches(cell string, year int) bool {
	if cell == "" || strings.EqualFold(cell, PolicyAllCases) {
		return true
	}
	value, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return false
	}
	return int(value) == year
}

// PolicyCatalog maps policy file names to their tables.
type PolicyCatalog struct {
	tables map[string]*PolicyTable
}

// NewPolicyCatalog indexes tables by name. Later tables replace earlier ones
// with the same name.
func NewPolicyCatalog(tables ...*PolicyTable) *PolicyCatalog {
	catalog := &PolicyCatalog{tables: make(map[string]*PolicyTable, len(tables))}
	for _, table := range tables {
		if table == nil {
			continue
		}
		catalog.tables[table.Name] = table
	}
	return catalog
}

// Table returns the table registered under name.
func (c *PolicyCatalog) Table(name string) (*PolicyTable, bool) {
	if c == nil {
		return nil, false
	}
	table, ok := c.tables[name]
	return table, ok
}

// Names returns the registered table names sorted.
func (c *PolicyCatalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

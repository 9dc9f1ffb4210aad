package render

import (
	"fmt"
	"sort"
	"strings"

	"gocorr/domain/corr"
	"gocorr/internal"
)

const (
	insufficientLabel = "insufficient data"
	noDataLabel       = "no data"
)

// Renderer turns correlation results into markdown tables. Grouped results
// are sorted with the domain-aware orders in sortorder.go so that, for
// example, seasons come out 春/夏/秋/冬 instead of alphabetically.
type Renderer struct {
	logger *internal.Logger
}

func NewRenderer(logger *internal.Logger) *Renderer {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Renderer{logger: logger}
}

// RenderPairwise renders a single-pair result. The table shape follows the
// number of grouping dimensions: a one-row table when ungrouped, a
// group/correlation listing for one dimension, a cross tabulation for two,
// and a flat hierarchical table for three or more.
func (r *Renderer) RenderPairwise(result corr.Result, var1, var2 string, groupBy []string) string {
	r.logger.Debug("[Renderer] rendering pairwise table: %s vs %s, %d group dimensions", var1, var2, len(groupBy))

	switch len(groupBy) {
	case 0:
		return r.renderUngroupedPair(result, var1, var2)
	case 1:
		return r.renderSingleGroupPair(result, groupBy[0])
	case 2:
		return r.renderCrossTab(result, groupBy)
	default:
		return r.renderHierarchical(result, groupBy)
	}
}

func (r *Renderer) renderUngroupedPair(result corr.Result, var1, var2 string) string {
	cell, ok := result[corr.PairKey(var1, var2)]
	if !ok {
		cell = corr.NullCell()
	}

	var b strings.Builder
	b.WriteString("| Variable pair | Correlation |\n")
	b.WriteString("| --- | --- |\n")
	fmt.Fprintf(&b, "| %s vs %s | %s |\n", var1, var2, formatCell(cell))
	return b.String()
}

func (r *Renderer) renderSingleGroupPair(result corr.Result, dimension string) string {
	keys := sortKeys(dimension, resultKeys(result))

	var b strings.Builder
	fmt.Fprintf(&b, "| %s | Correlation |\n", dimension)
	b.WriteString("| --- | --- |\n")
	for _, key := range keys {
		fmt.Fprintf(&b, "| %s | %s |\n", key, formatCell(result[key]))
	}
	return b.String()
}

// renderCrossTab lays the first dimension out as rows and the second as
// columns. Combinations that never occurred in the data render as "no data".
func (r *Renderer) renderCrossTab(result corr.Result, groupBy []string) string {
	cells := make(map[string]map[string]corr.Cell)
	var rowVals, colVals []string
	for key, cell := range result {
		parts := strings.SplitN(key, corr.GroupKeySeparator, 2)
		if len(parts) != 2 {
			continue
		}
		row, col := parts[0], parts[1]
		if cells[row] == nil {
			cells[row] = make(map[string]corr.Cell)
			rowVals = append(rowVals, row)
		}
		if _, seen := cells[row][col]; !seen {
			cells[row][col] = cell
		}
		colVals = append(colVals, col)
	}

	rows := sortKeys(groupBy[0], rowVals)
	cols := sortKeys(groupBy[1], distinctValues(colVals))

	var b strings.Builder
	fmt.Fprintf(&b, "| %s \\ %s |", groupBy[0], groupBy[1])
	for _, col := range cols {
		fmt.Fprintf(&b, " %s |", col)
	}
	b.WriteString("\n|")
	for i := 0; i < len(cols)+1; i++ {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")

	for _, row := range rows {
		fmt.Fprintf(&b, "| %s |", row)
		for _, col := range cols {
			cell, ok := cells[row][col]
			if !ok {
				b.WriteString(" " + noDataLabel + " |")
				continue
			}
			fmt.Fprintf(&b, " %s |", formatCell(cell))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderHierarchical flattens three or more grouping dimensions into one
// table, sorting level by level so rows read as a depth-first traversal.
func (r *Renderer) renderHierarchical(result corr.Result, groupBy []string) string {
	type entry struct {
		parts []string
		cell  corr.Cell
	}
	var entries []entry
	for key, cell := range result {
		parts := strings.Split(key, corr.GroupKeySeparator)
		if len(parts) != len(groupBy) {
			continue
		}
		entries = append(entries, entry{parts: parts, cell: cell})
	}

	var b strings.Builder
	b.WriteString("|")
	for _, dim := range groupBy {
		fmt.Fprintf(&b, " %s |", dim)
	}
	b.WriteString(" Correlation |\n|")
	for i := 0; i < len(groupBy)+1; i++ {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")

	var walk func(subset []entry, level int)
	walk = func(subset []entry, level int) {
		if level == len(groupBy) {
			for _, e := range subset {
				b.WriteString("|")
				for _, p := range e.parts {
					fmt.Fprintf(&b, " %s |", p)
				}
				fmt.Fprintf(&b, " %s |\n", formatCell(e.cell))
			}
			return
		}
		var values []string
		byValue := make(map[string][]entry)
		for _, e := range subset {
			v := e.parts[level]
			if byValue[v] == nil {
				values = append(values, v)
			}
			byValue[v] = append(byValue[v], e)
		}
		for _, v := range sortKeys(groupBy[level], values) {
			walk(byValue[v], level+1)
		}
	}
	walk(entries, 0)
	return b.String()
}

// RenderMatrix renders a correlation matrix as variable-by-variable tables.
// Grouped results emit one table per group, preceded by the group key in
// bold, with groups in domain-aware order.
func (r *Renderer) RenderMatrix(result *corr.MatrixResult, groupBy []string) string {
	var b strings.Builder
	if !result.Grouped {
		fmt.Fprintf(&b, "Correlation matrix (method: %s)\n\n", result.Method)
		r.writeMatrixTable(&b, result.Variables, result.Matrix)
		return b.String()
	}

	fmt.Fprintf(&b, "Grouped correlation matrix (method: %s)\n", result.Method)

	keys := make([]string, 0, len(result.Groups))
	for key := range result.Groups {
		keys = append(keys, key)
	}
	dimension := ""
	if len(groupBy) == 1 {
		dimension = groupBy[0]
	}
	if dimension != "" {
		keys = sortKeys(dimension, keys)
	} else {
		sort.Strings(keys)
	}

	for _, key := range keys {
		fmt.Fprintf(&b, "\n**%s**\n\n", key)
		r.writeMatrixTable(&b, result.Variables, result.Groups[key])
	}
	return b.String()
}

func (r *Renderer) writeMatrixTable(b *strings.Builder, variables []string, m corr.Matrix) {
	b.WriteString("| Variable |")
	for _, v := range variables {
		fmt.Fprintf(b, " %s |", v)
	}
	b.WriteString("\n|")
	for i := 0; i < len(variables)+1; i++ {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")

	for _, row := range variables {
		fmt.Fprintf(b, "| %s |", row)
		for _, col := range variables {
			fmt.Fprintf(b, " %s |", formatCell(m[row][col]))
		}
		b.WriteString("\n")
	}
}

func formatCell(cell corr.Cell) string {
	if cell.IsInsufficient() {
		return insufficientLabel
	}
	v, ok := cell.Value()
	if !ok {
		return noDataLabel
	}
	return fmt.Sprintf("%.3f", v)
}

func resultKeys(result corr.Result) []string {
	keys := make([]string, 0, len(result))
	for key := range result {
		keys = append(keys, key)
	}
	return keys
}

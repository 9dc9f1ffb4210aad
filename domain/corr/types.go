package corr

import (
	"fmt"
	"strings"
)

// Method identifies a correlation statistic
type Method string

const (
	MethodPearson  Method = "pearson"
	MethodSpearman Method = "spearman"
	MethodKendall  Method = "kendall"
)

// ParseMethod validates a user-supplied method name. An empty string defaults
// to pearson.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "", MethodPearson:
		return MethodPearson, nil
	case MethodSpearman:
		return MethodSpearman, nil
	case MethodKendall:
		return MethodKendall, nil
	default:
		return "", fmt.Errorf("unsupported correlation method: %q (supported: pearson, spearman, kendall)", s)
	}
}

// GroupKeySeparator joins group-by component values into a group key
const GroupKeySeparator = " - "

type cellKind int

const (
	cellNumeric cellKind = iota
	cellNull
	cellInsufficient
)

// Cell is a single correlation outcome: a numeric value, null (the statistic
// could not be computed), or an insufficiency sentinel (sample below the
// minimum size, deliberately not an error so partial results survive)
type Cell struct {
	kind  cellKind
	value float64
}

// NumericCell wraps a computed correlation value
func NumericCell(v float64) Cell {
	return Cell{kind: cellNumeric, value: v}
}

// NullCell marks a correlation that could not be computed
func NullCell() Cell {
	return Cell{kind: cellNull}
}

// InsufficientCell marks a group whose sample was below the minimum size
func InsufficientCell() Cell {
	return Cell{kind: cellInsufficient}
}

// Value returns the numeric correlation and whether one is present
func (c Cell) Value() (float64, bool) {
	return c.value, c.kind == cellNumeric
}

// IsNull reports whether the statistic failed to produce a value
func (c Cell) IsNull() bool {
	return c.kind == cellNull
}

// IsInsufficient reports whether the sample was too small
func (c Cell) IsInsufficient() bool {
	return c.kind == cellInsufficient
}

// Result maps group keys to pairwise correlation cells. Ungrouped results
// contain a single entry under the synthetic pair key.
type Result map[string]Cell

// PairKey is the synthetic group key used for ungrouped pairwise results
func PairKey(var1, var2 string) string {
	return fmt.Sprintf("corr_%s_%s", var1, var2)
}

// Matrix maps (row variable, column variable) to a correlation cell
type Matrix map[string]map[string]Cell

// MatrixResult holds a full correlation matrix, optionally per group
type MatrixResult struct {
	Variables []string
	Method    Method
	Grouped   bool
	Matrix    Matrix            // set when Grouped is false
	Groups    map[string]Matrix // set when Grouped is true
}

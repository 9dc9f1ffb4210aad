package derive

import (
	"math"

	"gocorr/domain/dataset"
)

// Canonical names of the built-in derived fields. These are the names the
// second resolution pass matches user intents against.
const (
	FieldTime          = "时间"
	FieldSeason        = "季节"
	FieldWindDirection = "风向方位"
)

// seasonLabels maps a month to its season label
var seasonLabels = map[int]string{
	3: "春", 4: "春", 5: "春",
	6: "夏", 7: "夏", 8: "夏",
	9: "秋", 10: "秋", 11: "秋",
	12: "冬", 1: "冬", 2: "冬",
}

// compassDirections are the eight buckets, clockwise from north
var compassDirections = []string{"北", "东北", "东", "东南", "南", "西南", "西", "西北"}

// TimeField normalizes a raw time-like column into timestamp values in place,
// coercing unparsable cells to missing
type TimeField struct{}

func (f *TimeField) Name() string        { return FieldTime }
func (f *TimeField) DependsOn() []string { return []string{FieldTime} }

func (f *TimeField) Generate(ds *dataset.Dataset, deps []string) error {
	col, _ := ds.Column(deps[0])
	next := make([]dataset.Value, len(col))
	for i, v := range col {
		next[i] = dataset.ParseTimestamp(v)
	}
	return ds.SetColumn(deps[0], next)
}

// SeasonField derives a season label from the month of a temporal column
type SeasonField struct{}

func (f *SeasonField) Name() string        { return FieldSeason }
func (f *SeasonField) DependsOn() []string { return []string{FieldTime} }

func (f *SeasonField) Generate(ds *dataset.Dataset, deps []string) error {
	col, _ := ds.Column(deps[0])
	next := make([]dataset.Value, len(col))
	for i, v := range col {
		ts := dataset.ParseTimestamp(v)
		if ts.IsMissing() {
			next[i] = dataset.NewMissingValue()
			continue
		}
		next[i] = dataset.NewStringValue(seasonLabels[int(ts.TS.Month())])
	}
	return ds.SetColumn(FieldSeason, next)
}

// WindDirectionField buckets a numeric wind-degree column into eight compass
// directions
type WindDirectionField struct{}

func (f *WindDirectionField) Name() string        { return FieldWindDirection }
func (f *WindDirectionField) DependsOn() []string { return []string{"风向"} }

func (f *WindDirectionField) Generate(ds *dataset.Dataset, deps []string) error {
	col, _ := ds.Column(deps[0])
	next := make([]dataset.Value, len(col))
	for i, v := range col {
		deg, ok := v.AsFloat()
		if !ok {
			next[i] = dataset.NewMissingValue()
			continue
		}
		next[i] = dataset.NewStringValue(compassDirections[windBucket(deg)])
	}
	return ds.SetColumn(FieldWindDirection, next)
}

// windBucket maps a degree to a compass index: floor(((deg mod 360)+22.5)/45) mod 8
func windBucket(deg float64) int {
	norm := math.Mod(deg, 360)
	if norm < 0 {
		norm += 360
	}
	return int(math.Floor((norm+22.5)/45)) % 8
}

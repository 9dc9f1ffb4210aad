package profile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"gocorr/domain/dataset"
	"gocorr/internal"
)

// maxCategoryRows caps the value-count listing for categorical columns so a
// high-cardinality column cannot flood the report.
const maxCategoryRows = 10

// ColumnProfile holds the summary for one column. Only the fields relevant
// for the column's kind are populated.
type ColumnProfile struct {
	Name    string  `json:"name"`
	Kind    string  `json:"kind"`
	Count   int     `json:"count"`
	Missing int     `json:"missing"`

	Mean   float64 `json:"mean,omitempty"`
	StdDev float64 `json:"std_dev,omitempty"`
	Min    float64 `json:"min,omitempty"`
	Q25    float64 `json:"q25,omitempty"`
	Median float64 `json:"median,omitempty"`
	Q75    float64 `json:"q75,omitempty"`
	Max    float64 `json:"max,omitempty"`

	ValueCounts []ValueCount `json:"value_counts,omitempty"`

	Earliest string `json:"earliest,omitempty"`
	Latest   string `json:"latest,omitempty"`
}

type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Profiler computes per-column descriptive statistics.
type Profiler struct {
	precision int
	logger    *internal.Logger
}

func NewProfiler(precision int, logger *internal.Logger) *Profiler {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Profiler{precision: precision, logger: logger}
}

// Describe profiles every column of the dataset in column order.
func (p *Profiler) Describe(ds *dataset.Dataset) []ColumnProfile {
	profiles := make([]ColumnProfile, 0, ds.ColumnCount())
	for _, name := range ds.Columns() {
		values, _ := ds.Column(name)
		profiles = append(profiles, p.describeColumn(name, values))
	}
	p.logger.Info("[Profiler] described %d columns over %d rows", len(profiles), ds.RowCount())
	return profiles
}

func (p *Profiler) describeColumn(name string, values []dataset.Value) ColumnProfile {
	profile := ColumnProfile{Name: name}

	var numeric []float64
	var timestamps []time.Time
	counts := make(map[string]int)
	kinds := make(map[dataset.ValueType]int)

	for _, v := range values {
		if v.IsMissing() {
			profile.Missing++
			continue
		}
		profile.Count++
		kinds[v.Type]++
		switch v.Type {
		case dataset.ValueTypeNumeric:
			numeric = append(numeric, v.Num)
		case dataset.ValueTypeTimestamp:
			timestamps = append(timestamps, v.TS)
		default:
			counts[v.String()]++
		}
	}

	switch dominantKind(kinds) {
	case dataset.ValueTypeNumeric:
		profile.Kind = "numeric"
		p.fillNumeric(&profile, numeric)
	case dataset.ValueTypeTimestamp:
		profile.Kind = "timestamp"
		if len(timestamps) > 0 {
			earliest, latest := timestamps[0], timestamps[0]
			for _, ts := range timestamps[1:] {
				if ts.Before(earliest) {
					earliest = ts
				}
				if ts.After(latest) {
					latest = ts
				}
			}
			profile.Earliest = earliest.Format("2006-01-02 15:04:05")
			profile.Latest = latest.Format("2006-01-02 15:04:05")
		}
	default:
		profile.Kind = "categorical"
		profile.ValueCounts = topCounts(counts, maxCategoryRows)
	}
	return profile
}

func (p *Profiler) fillNumeric(profile *ColumnProfile, numeric []float64) {
	if len(numeric) == 0 {
		return
	}
	profile.Mean = p.round(mustStat(stats.Mean(numeric)))
	profile.StdDev = p.round(mustStat(stats.StandardDeviationSample(numeric)))
	profile.Min = p.round(mustStat(stats.Min(numeric)))
	profile.Q25 = p.round(mustStat(stats.Percentile(numeric, 25)))
	profile.Median = p.round(mustStat(stats.Median(numeric)))
	profile.Q75 = p.round(mustStat(stats.Percentile(numeric, 75)))
	profile.Max = p.round(mustStat(stats.Max(numeric)))
}

func (p *Profiler) round(v float64) float64 {
	r, err := stats.Round(v, p.precision)
	if err != nil {
		return v
	}
	return r
}

// mustStat collapses the error returns of the stats package; the inputs are
// pre-filtered, so the only failure mode is an empty slice.
func mustStat(v float64, err error) float64 {
	if err != nil {
		return 0
	}
	return v
}

func dominantKind(kinds map[dataset.ValueType]int) dataset.ValueType {
	best := dataset.ValueTypeString
	bestCount := 0
	for kind, count := range kinds {
		if count > bestCount {
			best, bestCount = kind, count
		}
	}
	return best
}

func topCounts(counts map[string]int, limit int) []ValueCount {
	out := make([]ValueCount, 0, len(counts))
	for value, count := range counts {
		out = append(out, ValueCount{Value: value, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RenderMarkdown formats column profiles as two markdown tables, one for
// numeric and timestamp columns and one listing categorical value counts.
func RenderMarkdown(profiles []ColumnProfile) string {
	var b strings.Builder

	b.WriteString("| Column | Kind | Count | Missing | Mean | Std | Min | Q25 | Median | Q75 | Max |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- | --- | --- | --- | --- | --- |\n")
	for _, p := range profiles {
		switch p.Kind {
		case "numeric":
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %g | %g | %g | %g | %g | %g | %g |\n",
				p.Name, p.Kind, p.Count, p.Missing,
				p.Mean, p.StdDev, p.Min, p.Q25, p.Median, p.Q75, p.Max)
		case "timestamp":
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %s | | | | | | %s |\n",
				p.Name, p.Kind, p.Count, p.Missing, p.Earliest, p.Latest)
		default:
			fmt.Fprintf(&b, "| %s | %s | %d | %d | | | | | | | |\n",
				p.Name, p.Kind, p.Count, p.Missing)
		}
	}

	hasCategorical := false
	for _, p := range profiles {
		if len(p.ValueCounts) > 0 {
			hasCategorical = true
			break
		}
	}
	if hasCategorical {
		b.WriteString("\n| Column | Value | Count |\n")
		b.WriteString("| --- | --- | --- |\n")
		for _, p := range profiles {
			for _, vc := range p.ValueCounts {
				fmt.Fprintf(&b, "| %s | %s | %d |\n", p.Name, vc.Value, vc.Count)
			}
		}
	}
	return b.String()
}

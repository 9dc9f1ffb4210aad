package render

import "sort"

// Canonical display orders for known categorical dimensions
var (
	seasonOrder = []string{"春", "夏", "秋", "冬"}

	monthOrderCN = []string{"一月", "二月", "三月", "四月", "五月", "六月",
		"七月", "八月", "九月", "十月", "十一月", "十二月"}
	monthOrderNum = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12"}

	weekdayOrderCN      = []string{"星期一", "星期二", "星期三", "星期四", "星期五", "星期六", "星期日"}
	weekdayOrderCNShort = []string{"周一", "周二", "周三", "周四", "周五", "周六", "周日"}
	weekdayOrderEN      = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

	windDirectionOrder = []string{"北", "东北", "东", "东南", "南", "西南", "西", "西北"}

	timePeriodOrder = []string{"凌晨", "早晨", "上午", "中午", "下午", "傍晚", "晚上", "深夜"}

	levelOrder   = []string{"低", "中", "高"}
	levelOrderEN = []string{"low", "medium", "high"}
	gradeOrder   = []string{"优", "良", "中", "差"}
	sizeOrder    = []string{"小", "中", "大"}

	tempLevelOrder = []string{"严寒", "寒冷", "凉爽", "适宜", "温暖", "炎热", "酷热"}
)

// sortRule binds column-name keys to a canonical order. Rules are held in a
// slice so value-based matching is deterministic.
type sortRule struct {
	names []string
	order []string
}

var sortRules = []sortRule{
	{names: []string{"季节", "season"}, order: seasonOrder},
	{names: []string{"月份"}, order: monthOrderCN},
	{names: []string{"月", "month"}, order: monthOrderNum},
	{names: []string{"星期", "weekday"}, order: weekdayOrderCN},
	{names: []string{"周"}, order: weekdayOrderCNShort},
	{names: []string{"day_of_week"}, order: weekdayOrderEN},
	{names: []string{"风向", "风向方位", "wind_direction"}, order: windDirectionOrder},
	{names: []string{"时间段", "time_period"}, order: timePeriodOrder},
	{names: []string{"等级", "级别"}, order: levelOrder},
	{names: []string{"level"}, order: levelOrderEN},
	{names: []string{"评级", "grade"}, order: gradeOrder},
	{names: []string{"大小", "尺寸", "size"}, order: sizeOrder},
	{names: []string{"温度等级", "气温等级", "temp_level"}, order: tempLevelOrder},
}

// sortOrderFor returns the canonical order for a grouped dimension, matching
// the column name exactly first, then checking whether the observed distinct
// values are predominantly members of a registered order. Returns nil when no
// rule applies.
func sortOrderFor(columnName string, values []string) []string {
	for _, rule := range sortRules {
		for _, name := range rule.names {
			if name == columnName {
				return rule.order
			}
		}
	}

	if len(values) == 0 {
		return nil
	}
	distinct := distinctValues(values)

	// Full containment wins over partial matches
	for _, rule := range sortRules {
		if membershipCount(distinct, rule.order) == len(distinct) {
			return rule.order
		}
	}
	for _, rule := range sortRules {
		if float64(membershipCount(distinct, rule.order))/float64(len(distinct)) > 0.5 {
			return rule.order
		}
	}

	return nil
}

// sortKeys orders keys for display: by the registered canonical order when one
// matches, with unmatched values placed after the canonical list in
// lexicographic order; plain lexicographic otherwise.
func sortKeys(columnName string, keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)

	order := sortOrderFor(columnName, keys)
	if order == nil {
		return out
	}

	rank := make(map[string]int, len(order))
	for i, v := range order {
		rank[v] = i
	}
	sort.SliceStable(out, func(i, j int) bool {
		return rankOf(out[i], rank, len(order)) < rankOf(out[j], rank, len(order))
	})
	return out
}

func rankOf(v string, rank map[string]int, unmatched int) int {
	if r, ok := rank[v]; ok {
		return r
	}
	return unmatched
}

func distinctValues(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func membershipCount(values []string, order []string) int {
	member := make(map[string]bool, len(order))
	for _, v := range order {
		member[v] = true
	}
	count := 0
	for _, v := range values {
		if member[v] {
			count++
		}
	}
	return count
}

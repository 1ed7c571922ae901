// Package cronexpr 实现5字段cron表达式的求值。
// 注意：日期(day-of-month)与星期(day-of-week)同时限定时按“与”处理，
// 与POSIX cron的“或”规则不同，历史行为如此，不要改。
package cronexpr

import (
	"strconv"
	"strings"
	"time"
)

// searchLimit 向后搜索的分钟数上限，超出则认为表达式无可行匹配
const searchLimit = 366 * 24 * 60

// MatchField 判断单个cron字段是否匹配给定值。
// 每个字段只识别一种形式，按 a-b、v1,v2、base/step、精确值或* 的顺序判定。
func MatchField(expr string, value int) bool {
	if strings.Contains(expr, "-") {
		parts := strings.SplitN(expr, "-", 2)
		low, err1 := strconv.Atoi(parts[0])
		high, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			// 区间解析失败按不匹配处理
			return false
		}
		return value >= low && value <= high
	}

	if strings.Contains(expr, ",") {
		for _, item := range strings.Split(expr, ",") {
			v, err := strconv.Atoi(item)
			if err != nil {
				// 列表中的非法项跳过，不视为整体失败
				continue
			}
			if v == value {
				return true
			}
		}
		return false
	}

	if strings.Contains(expr, "/") {
		parts := strings.SplitN(expr, "/", 2)
		step, err := strconv.Atoi(parts[1])
		if err != nil || step <= 0 {
			return false
		}
		if parts[0] == "*" {
			return value%step == 0
		}
		base, err := strconv.Atoi(parts[0])
		if err != nil {
			return false
		}
		return value >= base && (value-base)%step == 0
	}

	if expr == "*" {
		return true
	}
	v, err := strconv.Atoi(expr)
	if err != nil {
		return false
	}
	return v == value
}

// ComputeNextRun 计算表达式在now之后的下一次UTC触发时间。
// 表达式必须恰好5个字段：分 时 日 月 星期（0=周日）。
// 无法解析或在搜索上限内无匹配时返回nil。
func ComputeNextRun(cronExpr string, now time.Time) *time.Time {
	fields := strings.Fields(cronExpr)
	if len(fields) != 5 {
		return nil
	}

	// 从下一个整分钟开始逐分钟推进
	candidate := now.UTC().Truncate(time.Minute).Add(time.Minute)

	for i := 0; i < searchLimit; i++ {
		if matchAll(fields, candidate) && candidate.After(now) {
			t := candidate
			return &t
		}
		candidate = candidate.Add(time.Minute)
	}
	return nil
}

func matchAll(fields []string, t time.Time) bool {
	return MatchField(fields[0], t.Minute()) &&
		MatchField(fields[1], t.Hour()) &&
		MatchField(fields[2], t.Day()) &&
		MatchField(fields[3], int(t.Month())) &&
		MatchField(fields[4], int(t.Weekday()))
}

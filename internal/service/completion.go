package service

import "watchdog/internal/model"

// Aggregate 子任务完成度：空为 0，否则 100*完成数/总数 四舍五入（.5 进位）
func Aggregate(flags []bool) int {
	n := len(flags)
	if n == 0 {
		return 0
	}
	t := 0
	for _, f := range flags {
		if f {
			t++
		}
	}
	return (200*t + n) / (2 * n)
}

func completionFlags(subtasks []model.SubTask) []bool {
	flags := make([]bool, len(subtasks))
	for i, s := range subtasks {
		flags[i] = s.Completed()
	}
	return flags
}

package service

import (
	"strings"
	"time"

	"github.com/settle-next/internal/constants"
)

// PeriodWindow 结算周期窗口，左闭右开
type PeriodWindow struct {
	Key   string
	Start time.Time
	End   time.Time
}

// ParsePeriodKey 解析 YYYY-MM 周期键为自然月窗口
func ParsePeriodKey(key string) (PeriodWindow, error) {
	normalized := strings.TrimSpace(key)
	t, err := time.Parse(constants.PeriodKeyLayout, normalized)
	if err != nil {
		return PeriodWindow{}, ErrPeriodInvalid
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return PeriodWindow{
		Key:   normalized,
		Start: start,
		End:   start.AddDate(0, 1, 0),
	}, nil
}

// PeriodWindowOf 返回指定时间所在的自然月窗口
func PeriodWindowOf(t time.Time) PeriodWindow {
	utc := t.UTC()
	start := time.Date(utc.Year(), utc.Month(), 1, 0, 0, 0, 0, time.UTC)
	return PeriodWindow{
		Key:   start.Format(constants.PeriodKeyLayout),
		Start: start,
		End:   start.AddDate(0, 1, 0),
	}
}

// PreviousPeriodWindow 返回指定时间上一个自然月窗口
func PreviousPeriodWindow(t time.Time) PeriodWindow {
	current := PeriodWindowOf(t)
	start := current.Start.AddDate(0, -1, 0)
	return PeriodWindow{
		Key:   start.Format(constants.PeriodKeyLayout),
		Start: start,
		End:   current.Start,
	}
}

package dashboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/xela07ax/dlp-guard/internal/domain"
)

// HourLabelLayout - формат подписи часового бакета. Минуты присутствуют всегда.
const HourLabelLayout = "2006-01-02 15:04"

// TimeBucket - бакет гистограммы, ключ - начало интервала в UTC (epoch ms).
type TimeBucket struct {
	EpochMillis int64
	Count       int64
}

// PeriodBucket - крупный бакет (месяц) с количеством позитивных срабатываний.
type PeriodBucket struct {
	EpochMillis int64
	Total       int64
	PIIDetected int64
}

// LoadTimezone разбирает IANA-идентификатор. "Local" и пустая строка не принимаются:
// они зависят от окружения процесса, а не от запроса.
func LoadTimezone(tz string) (*time.Location, error) {
	if tz == "" || tz == "Local" {
		return nil, domain.InvalidArgument("invalid timezone: %q", tz)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, domain.InvalidArgument("invalid timezone: %s", tz)
	}
	return loc, nil
}

// LocalizeHourly переподписывает часовые UTC-бакеты в часовом поясе loc.
// Второе значение - количество в последнем бакете упорядоченной последовательности.
// Если при переходе на зимнее время два UTC-часа получают одну подпись, их счётчики складываются.
func LocalizeHourly(buckets []TimeBucket, loc *time.Location) (map[string]int64, int64) {
	sorted := make([]TimeBucket, len(buckets))
	copy(sorted, buckets)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].EpochMillis < sorted[j].EpochMillis })

	counts := make(map[string]int64, len(sorted))
	for _, b := range sorted {
		label := time.UnixMilli(b.EpochMillis).In(loc).Format(HourLabelLayout)
		counts[label] += b.Count
	}

	var last int64
	if len(sorted) > 0 {
		last = sorted[len(sorted)-1].Count
	}
	return counts, last
}

// QuarterLabel возвращает "YYYY-Qn" для уже локализованного момента.
func QuarterLabel(t time.Time) string {
	return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
}

// LocalizeQuarterly группирует UTC-бакеты по кварталам локального времени.
// Квартал берётся из локального месяца, поэтому бакет у границы может уйти в соседний квартал.
func LocalizeQuarterly(buckets []PeriodBucket, loc *time.Location) []domain.QuarterlyStat {
	sorted := make([]PeriodBucket, len(buckets))
	copy(sorted, buckets)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].EpochMillis < sorted[j].EpochMillis })

	out := make([]domain.QuarterlyStat, 0, len(sorted))
	index := make(map[string]int, len(sorted))
	for _, b := range sorted {
		label := QuarterLabel(time.UnixMilli(b.EpochMillis).In(loc))
		if i, ok := index[label]; ok {
			out[i].TotalCount += b.Total
			out[i].PIIDetectedCount += b.PIIDetected
			continue
		}
		index[label] = len(out)
		out = append(out, domain.QuarterlyStat{
			Label:            label,
			TotalCount:       b.Total,
			PIIDetectedCount: b.PIIDetected,
		})
	}
	return out
}

// Package normalize maps the upstream client's heterogeneous result shapes
// into the canonical records everything downstream consumes. All mapping is
// stateless; monetary and consumption values are rounded to 2 decimal
// places and temperatures to 1 here, so stored and displayed values agree.
package normalize

import (
	"context"
	"log/slog"
	"time"

	"github.com/mercurymon/mercurymon/pkg/log"
	"github.com/mercurymon/mercurymon/pkg/mercury"
	"github.com/mercurymon/mercurymon/pkg/types"
)

// dateKey extracts the YYYY-MM-DD key from an upstream timestamp.
func dateKey(s string) string {
	if len(s) >= len(types.DateFormat) {
		return s[:len(types.DateFormat)]
	}
	return s
}

// utcKey rewrites an upstream timestamp as UTC RFC3339. Unparseable
// timestamps pass through untouched; the store retains them as-is.
func utcKey(s string) string {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return ts.UTC().Format(time.RFC3339)
}

// Usage normalizes a daily-granularity usage result.
func Usage(ctx context.Context, raw mercury.RawUsage) types.UsageData {
	data := types.UsageData{
		TotalUsage:        types.Round2(raw.TotalUsage),
		TotalCost:         types.Round2(raw.TotalCost),
		AverageDailyUsage: types.Round2(raw.AverageDailyUsage),
	}

	if raw.AverageTemperature != nil {
		data.AverageTemperature = types.Round1(*raw.AverageTemperature)
	}

	for _, day := range raw.DailyUsage {
		data.Days = append(data.Days, types.UsageDay{
			Date:        dateKey(day.Date),
			Consumption: types.Round2(day.Consumption),
			Cost:        types.Round2(day.Cost),
			Timestamp:   day.Date,
			FreePower:   day.FreePower,
		})
	}
	if n := len(data.Days); n > 0 {
		data.LatestDailyUsage = data.Days[n-1].Consumption
		data.LatestDailyCost = data.Days[n-1].Cost
	}

	for _, temp := range raw.TemperatureData {
		data.Temps = append(data.Temps, types.TemperatureDay{
			Date:        dateKey(temp.Date),
			Temperature: types.Round1(temp.Temp),
			Timestamp:   temp.Date,
		})
	}
	if n := len(data.Temps); n > 0 {
		data.CurrentTemperature = data.Temps[n-1].Temperature
	}

	log.Ctx(ctx).DebugContext(ctx, "normalized daily usage",
		slog.Float64("totalUsage", data.TotalUsage),
		slog.Int("days", len(data.Days)),
		slog.Int("temps", len(data.Temps)),
	)
	return data
}

// Hourly normalizes an hourly-granularity usage result. The upstream
// reports hourly entries through the same daily-usage sequence, with full
// timestamps for keys. Timestamps are rewritten in UTC so that lexical key
// order is chronological regardless of the upstream's local offsets.
func Hourly(ctx context.Context, raw mercury.RawUsage) types.HourlyData {
	data := types.HourlyData{
		TotalUsage: types.Round2(raw.TotalUsage),
	}
	for _, entry := range raw.DailyUsage {
		data.Hours = append(data.Hours, types.UsageHour{
			Timestamp:   utcKey(entry.Date),
			Consumption: types.Round2(entry.Consumption),
			Cost:        types.Round2(entry.Cost),
		})
	}

	log.Ctx(ctx).DebugContext(ctx, "normalized hourly usage",
		slog.Float64("totalUsage", data.TotalUsage),
		slog.Int("hours", len(data.Hours)),
	)
	return data
}

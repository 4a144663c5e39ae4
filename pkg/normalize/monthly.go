package normalize

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"github.com/mercurymon/mercurymon/pkg/log"
	"github.com/mercurymon/mercurymon/pkg/mercury"
	"github.com/mercurymon/mercurymon/pkg/types"
)

// rawPeriod is one entry of the monthly payload. Billing-period entries
// carry invoiceFrom/invoiceTo markers; the daily-usage-shaped fallback
// carries only a date.
type rawPeriod struct {
	InvoiceFrom string  `json:"invoiceFrom"`
	InvoiceTo   string  `json:"invoiceTo"`
	Date        string  `json:"date"`
	Consumption float64 `json:"consumption"`
	Cost        float64 `json:"cost"`
	Note        string  `json:"note"`
	FreePower   bool    `json:"free_power"`
}

type nestedUsage struct {
	Usage []struct {
		Label string      `json:"label"`
		Data  []rawPeriod `json:"data"`
	} `json:"usage"`
}

// Monthly normalizes a monthly-granularity usage result. The
// billing-period-oriented payload is selected preferentially; the plain
// daily-usage shape is used only when no billing-period data is present,
// and that degradation is logged.
func Monthly(ctx context.Context, raw mercury.RawUsage) types.MonthlyData {
	data := types.MonthlyData{
		TotalUsage: types.Round2(raw.TotalUsage),
	}

	for _, doc := range [][]byte{raw.UsageData, raw.RawData} {
		if len(doc) == 0 {
			continue
		}
		if periods := extractPeriods(doc); len(periods) > 0 {
			data.Periods = periods
			return data
		}
	}

	if len(raw.DailyUsage) > 0 {
		log.Ctx(ctx).WarnContext(ctx, "monthly billing-period data absent, falling back to daily-usage shape",
			slog.Int("entries", len(raw.DailyUsage)))
		data.Degraded = true
		for _, day := range raw.DailyUsage {
			data.Days = append(data.Days, types.UsageDay{
				Date:        dateKey(day.Date),
				Consumption: types.Round2(day.Consumption),
				Cost:        types.Round2(day.Cost),
				Timestamp:   day.Date,
				FreePower:   day.FreePower,
			})
		}
	}
	return data
}

// extractPeriods pulls billing-period entries out of one monthly document.
// The document is either the entry list itself or a nested structure of
// labelled series, where the "actual" series wins over estimates.
func extractPeriods(doc []byte) []types.PeriodEntry {
	var entries []rawPeriod
	if err := json.Unmarshal(doc, &entries); err == nil {
		return periodsFrom(entries)
	}

	var nested nestedUsage
	if err := json.Unmarshal(doc, &nested); err == nil && len(nested.Usage) > 0 {
		series := nested.Usage[0]
		for _, s := range nested.Usage {
			if s.Label == "actual" {
				series = s
				break
			}
		}
		return periodsFrom(series.Data)
	}
	return nil
}

// periodsFrom converts raw entries if and only if they carry the
// invoice-period markers.
func periodsFrom(entries []rawPeriod) []types.PeriodEntry {
	if len(entries) == 0 || entries[0].InvoiceFrom == "" || entries[0].InvoiceTo == "" {
		return nil
	}
	periods := make([]types.PeriodEntry, 0, len(entries))
	for _, e := range entries {
		periods = append(periods, types.PeriodEntry{
			InvoiceFrom: e.InvoiceFrom,
			InvoiceTo:   e.InvoiceTo,
			Consumption: types.Round2(e.Consumption),
			Cost:        types.Round2(e.Cost),
			Note:        e.Note,
		})
	}
	return periods
}

// Period derives the current billing-period summary from the latest
// billing-period entry. Returns false when there are no periods or the
// period bounds are unparseable.
func Period(periods []types.PeriodEntry, now time.Time) (types.PeriodSummary, bool) {
	if len(periods) == 0 {
		return types.PeriodSummary{}, false
	}

	latest := periods[0]
	for _, p := range periods[1:] {
		if dateKey(p.InvoiceTo) > dateKey(latest.InvoiceTo) {
			latest = p
		}
	}

	start, err := time.Parse(types.DateFormat, dateKey(latest.InvoiceFrom))
	if err != nil {
		return types.PeriodSummary{}, false
	}
	end, err := time.Parse(types.DateFormat, dateKey(latest.InvoiceTo))
	if err != nil || !end.After(start) {
		return types.PeriodSummary{}, false
	}

	totalDays := end.Sub(start).Hours()/24 + 1
	elapsedDays := now.Sub(start).Hours() / 24
	progress := math.Max(0, math.Min(100, elapsedDays/totalDays*100))

	remaining := int(math.Ceil(end.Sub(now).Hours() / 24))
	if remaining < 0 {
		remaining = 0
	}

	return types.PeriodSummary{
		PeriodStart:     dateKey(latest.InvoiceFrom),
		PeriodEnd:       dateKey(latest.InvoiceTo),
		Cost:            latest.Cost,
		Consumption:     latest.Consumption,
		DaysRemaining:   remaining,
		ProgressPercent: types.Round1(progress),
		Note:            latest.Note,
	}, true
}

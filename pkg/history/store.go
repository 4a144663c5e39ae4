// Package history is the bounded local time-series store. Daily usage and
// temperature are kept for the 180 most recent calendar days, hourly usage
// for a rolling 7-day window, each persisted as a single JSON document
// written atomically. The store is loaded at the start of an update cycle,
// merged in memory and saved at the end; it assumes a single writer.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/mercurymon/mercurymon/pkg/common"
	"github.com/mercurymon/mercurymon/pkg/log"
	"github.com/mercurymon/mercurymon/pkg/types"
)

const (
	dailyFile  = "mercury_daily.json"
	hourlyFile = "mercury_hourly.json"

	maxDailyEntries = 180
	hourlyRetention = 7 * 24 * time.Hour
)

// overridable for tests
var timeNow = time.Now

// StorageError is a durable read or write fault. It is non-fatal: a
// failed read degrades to empty history and a failed write is logged by
// the caller, since in-memory composition already has the fresh data.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store accumulates usage history across update cycles. It is not safe
// for concurrent use; the orchestrator's single-flight cycle is the only
// writer.
type Store struct {
	dir string

	daily map[string]types.UsageDay
	temps map[string]types.TemperatureDay
	hours map[string]types.UsageHour
}

// NewStore returns a Store persisting under dir.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		daily: map[string]types.UsageDay{},
		temps: map[string]types.TemperatureDay{},
		hours: map[string]types.UsageHour{},
	}
}

// Configured sets up the Store based on flags.
func Configured() *Store {
	dir := lflag.String("data-dir", "./data", "Directory to persist usage history documents in")

	s := NewStore("")
	lflag.Do(func() {
		s.dir = *dir
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			panic(fmt.Sprintf("creating data directory failed: %v", err))
		}
	})
	return s
}

// Load reads both documents from disk, replacing any in-memory state. A
// missing or corrupt document is non-fatal: it is logged and treated as
// empty history.
func (s *Store) Load(ctx context.Context) {
	s.daily = map[string]types.UsageDay{}
	s.temps = map[string]types.TemperatureDay{}
	s.hours = map[string]types.UsageHour{}

	var daily DailyDocument
	if readDocument(ctx, filepath.Join(s.dir, dailyFile), &daily) {
		for k, v := range daily.DailyUsage {
			s.daily[k] = v
		}
		for k, v := range daily.Temperature {
			s.temps[k] = v
		}
	}

	var hourly HourlyDocument
	if readDocument(ctx, filepath.Join(s.dir, hourlyFile), &hourly) {
		for k, v := range hourly.HourlyUsage {
			s.hours[k] = v
		}
	}
}

func readDocument(ctx context.Context, path string, out any) bool {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false
	}
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to read history document, starting empty",
			slog.Any("error", &StorageError{Op: "read", Path: path, Err: err}),
		)
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to parse history document, starting empty",
			slog.Any("error", &StorageError{Op: "parse", Path: path, Err: err}),
		)
		return false
	}
	return true
}

// MergeDays upserts the given days by date and trims the daily collection
// to the most recent dates. A date present both in history and in new
// records takes the new record's value.
func (s *Store) MergeDays(days []types.UsageDay) {
	for _, d := range days {
		if d.Date == "" {
			continue
		}
		s.daily[d.Date] = d
	}
	s.trimDaily()
}

// MergeTemps upserts the given temperature records by date. Temperature
// shares the daily retention window.
func (s *Store) MergeTemps(temps []types.TemperatureDay) {
	for _, t := range temps {
		if t.Date == "" {
			continue
		}
		s.temps[t.Date] = t
	}
	s.trimDaily()
}

// trimDaily keeps the newest maxDailyEntries dates. Date keys sort
// lexically in chronological order, so the oldest keys drop first. The
// temperature map is trimmed to the same horizon.
func (s *Store) trimDaily() {
	if len(s.daily) <= maxDailyEntries {
		s.trimTemps()
		return
	}
	dates := make([]string, 0, len(s.daily))
	for d := range s.daily {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	for _, d := range dates[:len(dates)-maxDailyEntries] {
		delete(s.daily, d)
	}
	s.trimTemps()
}

func (s *Store) trimTemps() {
	if len(s.temps) <= maxDailyEntries {
		return
	}
	dates := make([]string, 0, len(s.temps))
	for d := range s.temps {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	for _, d := range dates[:len(dates)-maxDailyEntries] {
		delete(s.temps, d)
	}
}

// MergeHours upserts the given hours by timestamp, then evicts every entry
// older than the retention window measured from the current time. Entries
// whose timestamps do not parse are deliberately retained.
func (s *Store) MergeHours(hours []types.UsageHour) {
	for _, h := range hours {
		if h.Timestamp == "" {
			continue
		}
		s.hours[h.Timestamp] = h
	}
	cutoff := timeNow().UTC().Add(-hourlyRetention)
	for key := range s.hours {
		ts, err := time.Parse(time.RFC3339, key)
		if err != nil {
			continue
		}
		if ts.Before(cutoff) {
			delete(s.hours, key)
		}
	}
}

// Save persists both documents with freshly recomputed summaries. Each
// document is written to a temp file and renamed into place, so a failed
// write leaves the previous document intact. The first write error is
// returned; the caller treats it as non-fatal.
func (s *Store) Save(ctx context.Context) error {
	snap := s.Snapshot()
	now := timeNow().UTC().Format(time.RFC3339)
	meta := Meta{Version: common.Version}

	daily := DailyDocument{
		LastUpdated: now,
		Summary:     summarizeDaily(snap.Days),
		DailyUsage:  s.daily,
		DailyList:   snap.Days,
		Temperature: s.temps,
		Meta:        meta,
	}
	hourly := HourlyDocument{
		LastUpdated: now,
		Summary:     summarizeHourly(snap.Hours),
		HourlyUsage: s.hours,
		HourlyList:  snap.Hours,
		Meta:        meta,
	}

	if err := writeDocument(filepath.Join(s.dir, dailyFile), daily); err != nil {
		return err
	}
	if err := writeDocument(filepath.Join(s.dir, hourlyFile), hourly); err != nil {
		return err
	}
	log.Ctx(ctx).DebugContext(ctx, "saved history documents",
		slog.Int("days", len(s.daily)),
		slog.Int("hours", len(s.hours)),
	)
	return nil
}

func writeDocument(path string, doc any) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &StorageError{Op: "encode", Path: path, Err: err}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return &StorageError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &StorageError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

// Snapshot produces the ascending-sorted view of the store for
// publication.
func (s *Store) Snapshot() types.ExtendedHistory {
	snap := types.ExtendedHistory{
		Days:       make([]types.UsageDay, 0, len(s.daily)),
		Temps:      make([]types.TemperatureDay, 0, len(s.temps)),
		Hours:      make([]types.UsageHour, 0, len(s.hours)),
		TotalDays:  len(s.daily),
		TotalHours: len(s.hours),
	}
	for _, d := range s.daily {
		snap.Days = append(snap.Days, d)
	}
	sort.Slice(snap.Days, func(i, j int) bool { return snap.Days[i].Date < snap.Days[j].Date })
	for _, t := range s.temps {
		snap.Temps = append(snap.Temps, t)
	}
	sort.Slice(snap.Temps, func(i, j int) bool { return snap.Temps[i].Date < snap.Temps[j].Date })
	for _, h := range s.hours {
		snap.Hours = append(snap.Hours, h)
	}
	sort.Slice(snap.Hours, func(i, j int) bool { return snap.Hours[i].Timestamp < snap.Hours[j].Timestamp })
	return snap
}

func summarizeDaily(days []types.UsageDay) DailySummary {
	sum := DailySummary{TotalDays: len(days)}
	for _, d := range days {
		sum.TotalConsumption += d.Consumption
		sum.TotalCost += d.Cost
	}
	sum.TotalConsumption = types.Round2(sum.TotalConsumption)
	sum.TotalCost = types.Round2(sum.TotalCost)
	if sum.TotalDays > 0 {
		sum.AverageDailyConsumption = types.Round2(sum.TotalConsumption / float64(sum.TotalDays))
		sum.AverageDailyCost = types.Round2(sum.TotalCost / float64(sum.TotalDays))
		sum.DateRange = DateRange{Start: days[0].Date, End: days[len(days)-1].Date}
	}
	if sum.TotalConsumption > 0 {
		sum.CostPerKWH = types.Round3(sum.TotalCost / sum.TotalConsumption)
	}
	return sum
}

func summarizeHourly(hours []types.UsageHour) HourlySummary {
	sum := HourlySummary{TotalHours: len(hours)}
	for _, h := range hours {
		sum.TotalConsumption += h.Consumption
		sum.TotalCost += h.Cost
	}
	sum.TotalConsumption = types.Round2(sum.TotalConsumption)
	sum.TotalCost = types.Round2(sum.TotalCost)
	if sum.TotalHours > 0 {
		sum.TimeRange = DateRange{Start: hours[0].Timestamp, End: hours[len(hours)-1].Timestamp}
	}
	return sum
}

package history

import "github.com/mercurymon/mercurymon/pkg/types"

// DateRange bounds the dates covered by a document.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DailySummary holds the aggregate statistics recomputed from the daily
// map on every save. Divisions guard zero denominators.
type DailySummary struct {
	TotalDays               int       `json:"total_days"`
	TotalConsumption        float64   `json:"total_consumption"`
	TotalCost               float64   `json:"total_cost"`
	AverageDailyConsumption float64   `json:"average_daily_consumption"`
	AverageDailyCost        float64   `json:"average_daily_cost"`
	CostPerKWH              float64   `json:"cost_per_kwh"`
	DateRange               DateRange `json:"date_range"`
}

// HourlySummary is the aggregate companion of the hourly document.
type HourlySummary struct {
	TotalHours       int       `json:"total_hours"`
	TotalConsumption float64   `json:"total_consumption"`
	TotalCost        float64   `json:"total_cost"`
	TimeRange        DateRange `json:"time_range"`
}

// Meta records provenance about the writing process.
type Meta struct {
	Version string `json:"version"`
}

// DailyDocument is the on-disk shape of the daily history file. DailyList
// duplicates DailyUsage in ascending order so consumers can chart without
// re-sorting.
type DailyDocument struct {
	LastUpdated string                          `json:"last_updated"`
	Summary     DailySummary                    `json:"summary"`
	DailyUsage  map[string]types.UsageDay       `json:"daily_usage"`
	DailyList   []types.UsageDay                `json:"daily_list"`
	Temperature map[string]types.TemperatureDay `json:"temperature"`
	Meta        Meta                            `json:"meta"`
}

// HourlyDocument is the on-disk shape of the hourly history file, keyed by
// full timestamp.
type HourlyDocument struct {
	LastUpdated string                     `json:"last_updated"`
	Summary     HourlySummary              `json:"summary"`
	HourlyUsage map[string]types.UsageHour `json:"hourly_usage"`
	HourlyList  []types.UsageHour          `json:"hourly_list"`
	Meta        Meta                       `json:"meta"`
}

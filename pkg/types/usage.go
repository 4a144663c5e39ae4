package types

import "math"

// Granularity is the time resolution of a usage fetch.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityHourly  Granularity = "hourly"
	GranularityMonthly Granularity = "monthly"
)

// DateFormat is the key format for daily records. Lexical order of these
// keys equals chronological order.
const DateFormat = "2006-01-02"

// AccountContext identifies the customer, account and electricity service
// the upstream API is queried for.
type AccountContext struct {
	CustomerID string `json:"customerID"`
	AccountID  string `json:"accountID"`
	ServiceID  string `json:"serviceID"`
}

// UsageDay is one calendar day of electricity usage. Identity is Date.
type UsageDay struct {
	Date        string  `json:"date"`
	Consumption float64 `json:"consumption"`
	Cost        float64 `json:"cost"`
	Timestamp   string  `json:"timestamp"`
	FreePower   bool    `json:"free_power"`
}

// UsageHour is one hour of electricity usage. Identity is Timestamp
// (RFC3339, UTC).
type UsageHour struct {
	Timestamp   string  `json:"timestamp"`
	Consumption float64 `json:"consumption"`
	Cost        float64 `json:"cost"`
}

// TemperatureDay is the recorded average temperature for one calendar day.
type TemperatureDay struct {
	Date        string  `json:"date"`
	Temperature float64 `json:"temperature"`
	Timestamp   string  `json:"timestamp"`
}

// UsageData is the normalized result of a daily-granularity usage fetch.
type UsageData struct {
	TotalUsage         float64          `json:"totalUsage"`
	TotalCost          float64          `json:"totalCost"`
	AverageDailyUsage  float64          `json:"averageDailyUsage"`
	LatestDailyUsage   float64          `json:"latestDailyUsage"`
	LatestDailyCost    float64          `json:"latestDailyCost"`
	AverageTemperature float64          `json:"averageTemperature"`
	CurrentTemperature float64          `json:"currentTemperature"`
	Days               []UsageDay       `json:"days"`
	Temps              []TemperatureDay `json:"temps"`
}

// HourlyData is the normalized result of an hourly-granularity usage fetch.
type HourlyData struct {
	TotalUsage float64     `json:"totalUsage"`
	Hours      []UsageHour `json:"hours"`
}

// PeriodEntry is one monthly billing period as reported upstream.
type PeriodEntry struct {
	InvoiceFrom string  `json:"invoiceFrom"`
	InvoiceTo   string  `json:"invoiceTo"`
	Consumption float64 `json:"consumption"`
	Cost        float64 `json:"cost"`
	Note        string  `json:"note,omitempty"`
}

// MonthlyData is the normalized result of a monthly-granularity usage
// fetch. Periods holds billing-period entries when the upstream provided
// them; when only a daily-usage-shaped payload was present the entries
// land in Days instead and Degraded is set.
type MonthlyData struct {
	TotalUsage float64       `json:"totalUsage"`
	Periods    []PeriodEntry `json:"periods"`
	Days       []UsageDay    `json:"days,omitempty"`
	Degraded   bool          `json:"degraded,omitempty"`
}

// PeriodSummary describes progress through the current billing period.
type PeriodSummary struct {
	PeriodStart     string  `json:"periodStart"`
	PeriodEnd       string  `json:"periodEnd"`
	Cost            float64 `json:"cost"`
	Consumption     float64 `json:"consumption"`
	DaysRemaining   int     `json:"daysRemaining"`
	ProgressPercent float64 `json:"progressPercent"`
	Note            string  `json:"note,omitempty"`
}

// Round2 rounds monetary and consumption values to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round1 rounds temperature values to 1 decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Round3 rounds derived per-unit rates to 3 decimal places.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

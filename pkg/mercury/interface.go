package mercury

import (
	"context"
	"encoding/json"

	"github.com/mercurymon/mercurymon/pkg/types"
)

// Client is the contract of the upstream supplier library. Authentication
// protocol internals (the OAuth handshake) live behind Login; expired
// sessions surface as errors carrying a recognizable message, see Classify.
type Client interface {
	// Login establishes an authenticated session.
	Login(ctx context.Context) error

	// AccountContext returns the customer, account and electricity service
	// IDs for the logged-in user.
	AccountContext(ctx context.Context) (types.AccountContext, error)

	// Usage fetches usage data at the given granularity.
	Usage(ctx context.Context, acct types.AccountContext, g types.Granularity) (RawUsage, error)

	// BillSummary fetches the account's billing position.
	BillSummary(ctx context.Context, acct types.AccountContext) (RawBill, error)
}

// RawDay is one daily entry as the upstream reports it.
type RawDay struct {
	Date        string  `json:"date"`
	Consumption float64 `json:"consumption"`
	Cost        float64 `json:"cost"`
	FreePower   bool    `json:"free_power"`
}

// RawTemp is one daily temperature entry as the upstream reports it.
type RawTemp struct {
	Date string  `json:"date"`
	Temp float64 `json:"temp"`
}

// RawUsage is the upstream usage result before normalization. The shape
// varies by granularity and library version: daily and hourly fetches fill
// DailyUsage, monthly fetches may instead carry billing-period data nested
// under UsageData or RawData. Nothing downstream of the normalizer may
// inspect these fields.
type RawUsage struct {
	TotalUsage         float64         `json:"totalUsage"`
	TotalCost          float64         `json:"totalCost"`
	AverageDailyUsage  float64         `json:"averageDailyUsage"`
	AverageTemperature *float64        `json:"averageTemperature"`
	DataPoints         int             `json:"dataPoints"`
	DailyUsage         []RawDay        `json:"dailyUsage"`
	TemperatureData    []RawTemp       `json:"temperatureData"`
	UsageData          json.RawMessage `json:"usageData,omitempty"`
	RawData            json.RawMessage `json:"rawData,omitempty"`
}

// Empty reports whether the result carries no usable data.
func (r RawUsage) Empty() bool {
	return len(r.DailyUsage) == 0 && len(r.UsageData) == 0 && len(r.RawData) == 0 && r.DataPoints == 0
}

// RawBill is the upstream bill summary before normalization. Field names
// and value types vary by library version so it stays a loose map until
// the normalizer coerces it.
type RawBill map[string]any

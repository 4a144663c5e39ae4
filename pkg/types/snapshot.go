package types

import "time"

// Metric names published to the consumer.
const (
	MetricTotalUsage         = "total_usage"
	MetricEnergyUsage        = "energy_usage"
	MetricCurrentBill        = "current_bill"
	MetricLatestDailyUsage   = "latest_daily_usage"
	MetricLatestDailyCost    = "latest_daily_cost"
	MetricAverageTemperature = "average_temperature"
	MetricCurrentTemperature = "current_temperature"
	MetricCustomerID         = "customer_id"
	MetricHourlyUsage        = "hourly_usage"
	MetricMonthlyUsage       = "monthly_usage"
	MetricLastUpdated        = "last_updated"

	MetricBillAccountID         = "bill_account_id"
	MetricBillBalance           = "bill_balance"
	MetricBillDueAmount         = "bill_due_amount"
	MetricBillBillDate          = "bill_bill_date"
	MetricBillDueDate           = "bill_due_date"
	MetricBillOverdueAmount     = "bill_overdue_amount"
	MetricBillStatementTotal    = "bill_statement_total"
	MetricBillElectricityAmount = "bill_electricity_amount"
	MetricBillGasAmount         = "bill_gas_amount"
	MetricBillBroadbandAmount   = "bill_broadband_amount"
	MetricBillPaymentType       = "bill_payment_type"
	MetricBillPaymentMethod     = "bill_payment_method"

	MetricMonthlyUsageCost              = "monthly_usage_cost"
	MetricMonthlyUsageConsumption       = "monthly_usage_consumption"
	MetricMonthlyDaysRemaining          = "monthly_days_remaining"
	MetricMonthlyBillingStartDate       = "monthly_billing_start_date"
	MetricMonthlyBillingEndDate         = "monthly_billing_end_date"
	MetricMonthlyBillingProgressPercent = "monthly_billing_progress_percent"
	MetricMonthlyProjectedBillNote      = "monthly_projected_bill_note"

	MetricTotalHistoricalDays  = "total_historical_days"
	MetricTotalHistoricalHours = "total_historical_hours"
)

// Metrics is the published mapping of metric name to scalar value.
type Metrics map[string]any

// ExtendedHistory is the ascending-sorted view of the historical store
// produced for publication.
type ExtendedHistory struct {
	Days       []UsageDay       `json:"days"`
	Temps      []TemperatureDay `json:"temps"`
	Hours      []UsageHour      `json:"hours"`
	TotalDays  int              `json:"totalDays"`
	TotalHours int              `json:"totalHours"`
}

// Snapshot is the complete result of one successful update cycle: the
// metric mapping plus the chart sequences for the enumerated chart metrics.
type Snapshot struct {
	Metrics     Metrics          `json:"metrics"`
	Days        []UsageDay       `json:"days"`
	Temps       []TemperatureDay `json:"temps"`
	Hours       []UsageHour      `json:"hours"`
	Periods     []PeriodEntry    `json:"periods"`
	LastUpdated time.Time        `json:"lastUpdated"`
}

package types

// BillSummary is the account's billing position. It is replaced wholesale
// on each fetch, no history is kept.
type BillSummary struct {
	AccountID         string  `json:"accountID"`
	Balance           float64 `json:"balance"`
	DueAmount         float64 `json:"dueAmount"`
	BillDate          string  `json:"billDate"`
	DueDate           string  `json:"dueDate"`
	OverdueAmount     float64 `json:"overdueAmount"`
	StatementTotal    float64 `json:"statementTotal"`
	ElectricityAmount float64 `json:"electricityAmount"`
	GasAmount         float64 `json:"gasAmount"`
	BroadbandAmount   float64 `json:"broadbandAmount"`
	PaymentType       string  `json:"paymentType"`
	PaymentMethod     string  `json:"paymentMethod"`
}

// Empty reports whether the summary carries no data, which is how a failed
// or unavailable billing fetch degrades.
func (b BillSummary) Empty() bool {
	return b == BillSummary{}
}

package normalize

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/mercurymon/mercurymon/pkg/log"
	"github.com/mercurymon/mercurymon/pkg/mercury"
	"github.com/mercurymon/mercurymon/pkg/types"
)

// Bill normalizes a bill summary result. Field values arrive as strings,
// numbers or nulls depending on the upstream version, so every numeric is
// coerced with a zero fallback.
func Bill(ctx context.Context, raw mercury.RawBill) types.BillSummary {
	if len(raw) == 0 {
		return types.BillSummary{}
	}

	bill := types.BillSummary{
		AccountID:         asString(raw["account_id"]),
		Balance:           types.Round2(asFloat(raw["current_balance"])),
		DueAmount:         types.Round2(asFloat(raw["due_amount"])),
		BillDate:          asString(raw["bill_date"]),
		DueDate:           asString(raw["due_date"]),
		OverdueAmount:     types.Round2(asFloat(raw["overdue_amount"])),
		StatementTotal:    types.Round2(asFloat(raw["statement_total"])),
		ElectricityAmount: types.Round2(asFloat(raw["electricity_amount"])),
		GasAmount:         types.Round2(asFloat(raw["gas_amount"])),
		BroadbandAmount:   types.Round2(asFloat(raw["broadband_amount"])),
		PaymentType:       asString(raw["payment_type"]),
		PaymentMethod:     asString(raw["payment_method"]),
	}

	log.Ctx(ctx).DebugContext(ctx, "normalized bill summary",
		slog.String("accountID", bill.AccountID),
		slog.Float64("dueAmount", bill.DueAmount),
	)
	return bill
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

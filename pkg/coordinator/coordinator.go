// Package coordinator drives the update cycle: authenticate against the
// supplier, fetch usage and billing, normalize, merge into the historical
// store, and compose the published metric mapping. Cycles are single
// flight; a failed cycle leaves the previously published snapshot intact.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/mercurymon/mercurymon/pkg/log"
	"github.com/mercurymon/mercurymon/pkg/mercury"
	"github.com/mercurymon/mercurymon/pkg/normalize"
	"github.com/mercurymon/mercurymon/pkg/types"
)

// overridable for tests
var timeNow = time.Now

// State is the phase of the current update cycle.
type State string

const (
	StateIdle           State = "idle"
	StateAuthenticating State = "authenticating"
	StateFetching       State = "fetching"
	StateNormalizing    State = "normalizing"
	StateMerging        State = "merging"
	StateComposing      State = "composing"
	StatePublished      State = "published"
	StateFailed         State = "failed"
)

// Fetcher is the upstream adapter surface the coordinator drives.
type Fetcher interface {
	Authenticate(ctx context.Context) bool
	Reset()
	Account() types.AccountContext
	FetchUsage(ctx context.Context, g types.Granularity) (mercury.RawUsage, error)
	FetchBillSummary(ctx context.Context) (mercury.RawBill, error)
}

// History is the store surface the coordinator merges into each cycle.
type History interface {
	Load(ctx context.Context)
	MergeDays([]types.UsageDay)
	MergeTemps([]types.TemperatureDay)
	MergeHours([]types.UsageHour)
	Save(ctx context.Context) error
	Snapshot() types.ExtendedHistory
}

// Coordinator owns the published snapshot and the cycle loop.
type Coordinator struct {
	fetcher  Fetcher
	store    History
	interval time.Duration

	// cycleMu serializes whole cycles: the ticker loop and forced updates
	// share one history store that assumes a single writer.
	cycleMu sync.Mutex

	mu        sync.RWMutex
	state     State
	snapshot  types.Snapshot
	published bool
	lastErr   error
	cycle     uint64
}

// New returns a Coordinator updating every interval.
func New(f Fetcher, store History, interval time.Duration) *Coordinator {
	return &Coordinator{
		fetcher:  f,
		store:    store,
		interval: interval,
		state:    StateIdle,
	}
}

// Configured sets up the Coordinator based on flags.
func Configured(f Fetcher, store History) *Coordinator {
	interval := lflag.Duration("update-interval", time.Hour, "How often to poll the supplier API")

	c := New(f, store, 0)
	lflag.Do(func() {
		c.interval = *interval
	})
	return c
}

// Run fetches immediately and then on every interval tick until ctx is
// canceled. Cycle failures are reported through the snapshot state, never
// as a Run error.
func (c *Coordinator) Run(ctx context.Context) {
	t := time.NewTicker(c.interval)
	defer t.Stop()

	for {
		if err := c.Refresh(ctx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "update cycle failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Refresh runs one complete update cycle. Cycles are single flight: a
// Refresh that arrives while another is running waits its turn. The
// returned error is the cycle's terminal failure, if any; previously
// published data is never cleared on failure.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	c.mu.Lock()
	c.cycle++
	ctx = log.WithAttrs(ctx, slog.Uint64("cycle", c.cycle))
	c.mu.Unlock()

	err := c.runCycle(ctx)

	c.mu.Lock()
	c.lastErr = err
	if err != nil {
		c.state = StateFailed
		// The consumer still gets a zero-valued mapping if nothing was
		// ever published, so every metric has a defined value.
		if !c.published {
			c.snapshot = emptySnapshot()
			c.published = true
		}
	} else {
		c.state = StatePublished
	}
	c.mu.Unlock()
	return err
}

func (c *Coordinator) runCycle(ctx context.Context) error {
	start := timeNow()
	c.setState(StateAuthenticating)
	if !c.fetcher.Authenticate(ctx) {
		return &mercury.AuthError{Err: fmt.Errorf("could not establish session")}
	}

	// Each fetch category degrades to its zero value on upstream failure;
	// only auth failures end the cycle. A session expiry triggers one
	// shared re-authentication, a second expiry in the same cycle is
	// terminal.
	c.setState(StateFetching)
	var reauthed bool
	rawDaily, err := c.fetchUsage(ctx, types.GranularityDaily, &reauthed)
	if fatal(err) {
		return err
	}
	rawHourly, err := c.fetchUsage(ctx, types.GranularityHourly, &reauthed)
	if fatal(err) {
		return err
	}
	rawMonthly, err := c.fetchUsage(ctx, types.GranularityMonthly, &reauthed)
	if fatal(err) {
		return err
	}
	rawBill, err := c.fetchBill(ctx, &reauthed)
	if fatal(err) {
		return err
	}

	c.setState(StateNormalizing)
	usage := normalize.Usage(ctx, rawDaily)
	hourly := normalize.Hourly(ctx, rawHourly)
	monthly := normalize.Monthly(ctx, rawMonthly)
	bill := normalize.Bill(ctx, rawBill)

	c.setState(StateMerging)
	c.store.Load(ctx)
	c.store.MergeDays(usage.Days)
	c.store.MergeTemps(usage.Temps)
	c.store.MergeHours(hourly.Hours)
	if err := c.store.Save(ctx); err != nil {
		// In-memory composition already has the fresh data.
		log.Ctx(ctx).WarnContext(ctx, "failed to persist history", slog.Any("error", err))
	}

	c.setState(StateComposing)
	snap := c.compose(usage, hourly, monthly, bill, c.store.Snapshot())

	c.mu.Lock()
	c.snapshot = snap
	c.published = true
	c.mu.Unlock()

	log.Ctx(ctx).InfoContext(ctx, "published update",
		slog.Int("days", len(snap.Days)),
		slog.Int("hours", len(snap.Hours)),
		slog.Duration("took", timeNow().Sub(start)),
	)
	return nil
}

// fetchUsage fetches one usage category. On the cycle's first session
// expiry it resets the session and retries the fetch once. Upstream
// faults degrade the category to empty and are logged here.
func (c *Coordinator) fetchUsage(ctx context.Context, g types.Granularity, reauthed *bool) (mercury.RawUsage, error) {
	raw, err := c.fetcher.FetchUsage(ctx, g)
	if mercury.IsAuthExpired(err) && !*reauthed {
		*reauthed = true
		log.Ctx(ctx).WarnContext(ctx, "session expired, re-authenticating",
			slog.String("granularity", string(g)))
		c.fetcher.Reset()
		raw, err = c.fetcher.FetchUsage(ctx, g)
	}
	if err != nil && !fatal(err) {
		log.Ctx(ctx).WarnContext(ctx, "usage fetch degraded to empty",
			slog.String("granularity", string(g)),
			slog.Any("error", err),
		)
		return mercury.RawUsage{}, nil
	}
	return raw, err
}

func (c *Coordinator) fetchBill(ctx context.Context, reauthed *bool) (mercury.RawBill, error) {
	raw, err := c.fetcher.FetchBillSummary(ctx)
	if mercury.IsAuthExpired(err) && !*reauthed {
		*reauthed = true
		log.Ctx(ctx).WarnContext(ctx, "session expired, re-authenticating")
		c.fetcher.Reset()
		raw, err = c.fetcher.FetchBillSummary(ctx)
	}
	if err != nil && !fatal(err) {
		log.Ctx(ctx).WarnContext(ctx, "bill summary fetch degraded to empty", slog.Any("error", err))
		return nil, nil
	}
	return raw, err
}

// fatal reports whether err ends the cycle instead of degrading one
// fetch category.
func fatal(err error) bool {
	return mercury.IsAuth(err) || mercury.IsAuthExpired(err)
}

func (c *Coordinator) compose(usage types.UsageData, hourly types.HourlyData, monthly types.MonthlyData, bill types.BillSummary, hist types.ExtendedHistory) types.Snapshot {
	now := timeNow().UTC()
	m := types.Metrics{
		types.MetricTotalUsage:         usage.TotalUsage,
		types.MetricEnergyUsage:        usage.TotalUsage,
		types.MetricCurrentBill:        usage.TotalCost,
		types.MetricLatestDailyUsage:   usage.LatestDailyUsage,
		types.MetricLatestDailyCost:    usage.LatestDailyCost,
		types.MetricAverageTemperature: usage.AverageTemperature,
		types.MetricCurrentTemperature: usage.CurrentTemperature,
		types.MetricCustomerID:         c.fetcher.Account().CustomerID,
		types.MetricHourlyUsage:        hourly.TotalUsage,
		types.MetricMonthlyUsage:       monthly.TotalUsage,
		types.MetricLastUpdated:        now.Format(time.RFC3339),

		types.MetricBillAccountID:         bill.AccountID,
		types.MetricBillBalance:           bill.Balance,
		types.MetricBillDueAmount:         bill.DueAmount,
		types.MetricBillBillDate:          bill.BillDate,
		types.MetricBillDueDate:           bill.DueDate,
		types.MetricBillOverdueAmount:     bill.OverdueAmount,
		types.MetricBillStatementTotal:    bill.StatementTotal,
		types.MetricBillElectricityAmount: bill.ElectricityAmount,
		types.MetricBillGasAmount:         bill.GasAmount,
		types.MetricBillBroadbandAmount:   bill.BroadbandAmount,
		types.MetricBillPaymentType:       bill.PaymentType,
		types.MetricBillPaymentMethod:     bill.PaymentMethod,

		types.MetricTotalHistoricalDays:  hist.TotalDays,
		types.MetricTotalHistoricalHours: hist.TotalHours,
	}

	if summary, ok := normalize.Period(monthly.Periods, now); ok {
		m[types.MetricMonthlyUsageCost] = summary.Cost
		m[types.MetricMonthlyUsageConsumption] = summary.Consumption
		m[types.MetricMonthlyDaysRemaining] = summary.DaysRemaining
		m[types.MetricMonthlyBillingStartDate] = summary.PeriodStart
		m[types.MetricMonthlyBillingEndDate] = summary.PeriodEnd
		m[types.MetricMonthlyBillingProgressPercent] = summary.ProgressPercent
		m[types.MetricMonthlyProjectedBillNote] = summary.Note
	} else {
		m[types.MetricMonthlyUsageCost] = 0.0
		m[types.MetricMonthlyUsageConsumption] = 0.0
		m[types.MetricMonthlyDaysRemaining] = 0
		m[types.MetricMonthlyBillingStartDate] = ""
		m[types.MetricMonthlyBillingEndDate] = ""
		m[types.MetricMonthlyBillingProgressPercent] = 0.0
		m[types.MetricMonthlyProjectedBillNote] = ""
	}

	return types.Snapshot{
		Metrics:     m,
		Days:        hist.Days,
		Temps:       hist.Temps,
		Hours:       hist.Hours,
		Periods:     monthly.Periods,
		LastUpdated: now,
	}
}

// emptySnapshot is a fully zero-valued publication so consumers never see
// missing keys.
func emptySnapshot() types.Snapshot {
	empty := (&Coordinator{fetcher: noFetcher{}}).compose(
		types.UsageData{}, types.HourlyData{}, types.MonthlyData{}, types.BillSummary{}, types.ExtendedHistory{})
	empty.LastUpdated = time.Time{}
	empty.Metrics[types.MetricLastUpdated] = ""
	return empty
}

type noFetcher struct{}

func (noFetcher) Authenticate(context.Context) bool { return false }

func (noFetcher) Reset() {}

func (noFetcher) Account() types.AccountContext { return types.AccountContext{} }

func (noFetcher) FetchUsage(context.Context, types.Granularity) (mercury.RawUsage, error) {
	return mercury.RawUsage{}, nil
}

func (noFetcher) FetchBillSummary(context.Context) (mercury.RawBill, error) { return nil, nil }

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the current cycle phase.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastError returns the most recent cycle's terminal error, nil after a
// successful cycle.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Snapshot returns the last published snapshot and whether anything has
// been published yet.
func (c *Coordinator) Snapshot() (types.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, c.published
}

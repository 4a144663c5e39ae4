package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mercurymon/mercurymon/pkg/history"
	"github.com/mercurymon/mercurymon/pkg/mercury"
	"github.com/mercurymon/mercurymon/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testAccount = types.AccountContext{
	CustomerID: "C123",
	AccountID:  "A456",
	ServiceID:  "S789",
}

func testRawDaily() mercury.RawUsage {
	return mercury.RawUsage{
		TotalUsage: 31.34,
		TotalCost:  9.46,
		DailyUsage: []mercury.RawDay{
			{Date: "2024-03-01T00:00:00+13:00", Consumption: 4.51, Cost: 1.21},
			{Date: "2024-03-02T00:00:00+13:00", Consumption: 5.1, Cost: 1.5},
		},
		TemperatureData: []mercury.RawTemp{
			{Date: "2024-03-02T00:00:00+13:00", Temp: 15.0},
		},
	}
}

func testRawMonthly() mercury.RawUsage {
	return mercury.RawUsage{
		TotalUsage: 245.7,
		UsageData:  []byte(`[{"invoiceFrom":"2024-02-15","invoiceTo":"2024-03-15","consumption":125.2,"cost":46.8}]`),
	}
}

// wires a fully successful fetch pass.
func expectFetches(f *mockFetcher) {
	f.On("Authenticate", mock.Anything).Return(true)
	f.On("Account").Return(testAccount)
	f.On("FetchUsage", mock.Anything, types.GranularityDaily).Return(testRawDaily(), nil)
	f.On("FetchUsage", mock.Anything, types.GranularityHourly).Return(mercury.RawUsage{
		TotalUsage: 3.0,
		DailyUsage: []mercury.RawDay{{Date: "2024-03-02T10:00:00Z", Consumption: 1.5, Cost: 0.4}},
	}, nil)
	f.On("FetchUsage", mock.Anything, types.GranularityMonthly).Return(testRawMonthly(), nil)
	f.On("FetchBillSummary", mock.Anything).Return(mercury.RawBill{
		"account_id": "A456",
		"due_amount": 142.51,
	}, nil)
}

func expectStore(s *mockHistory) {
	s.On("Load", mock.Anything)
	s.On("MergeDays", mock.Anything)
	s.On("MergeTemps", mock.Anything)
	s.On("MergeHours", mock.Anything)
	s.On("Save", mock.Anything).Return(nil)
	s.On("Snapshot").Return(types.ExtendedHistory{
		Days:       []types.UsageDay{{Date: "2024-03-01"}, {Date: "2024-03-02"}},
		TotalDays:  2,
		TotalHours: 1,
	})
}

func TestRefresh(t *testing.T) {
	f := &mockFetcher{}
	s := &mockHistory{}
	expectFetches(f)
	expectStore(s)

	c := New(f, s, time.Hour)
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, StatePublished, c.State())
	assert.NoError(t, c.LastError())

	snap, ok := c.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 31.34, snap.Metrics[types.MetricTotalUsage])
	assert.Equal(t, 9.46, snap.Metrics[types.MetricCurrentBill])
	assert.Equal(t, 5.1, snap.Metrics[types.MetricLatestDailyUsage])
	assert.Equal(t, 15.0, snap.Metrics[types.MetricCurrentTemperature])
	assert.Equal(t, "C123", snap.Metrics[types.MetricCustomerID])
	assert.Equal(t, 3.0, snap.Metrics[types.MetricHourlyUsage])
	assert.Equal(t, 245.7, snap.Metrics[types.MetricMonthlyUsage])
	assert.Equal(t, 2, snap.Metrics[types.MetricTotalHistoricalDays])
	assert.Equal(t, 1, snap.Metrics[types.MetricTotalHistoricalHours])
	assert.Equal(t, "2024-02-15", snap.Metrics[types.MetricMonthlyBillingStartDate])
	assert.Equal(t, 142.51, snap.Metrics[types.MetricBillDueAmount])
	assert.Len(t, snap.Days, 2)
	require.Len(t, snap.Periods, 1)
	assert.Equal(t, 125.2, snap.Periods[0].Consumption)

	s.AssertExpectations(t)
	f.AssertExpectations(t)
}

func TestRefreshAuthFailure(t *testing.T) {
	f := &mockFetcher{}
	s := &mockHistory{}
	f.On("Authenticate", mock.Anything).Return(false)

	c := New(f, s, time.Hour)
	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, mercury.IsAuth(err))
	assert.Equal(t, StateFailed, c.State())

	// Even a first-cycle failure publishes a fully zero-valued mapping.
	snap, ok := c.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 0.0, snap.Metrics[types.MetricTotalUsage])
	assert.Equal(t, "", snap.Metrics[types.MetricCustomerID])
	assert.Equal(t, 0, snap.Metrics[types.MetricMonthlyDaysRemaining])
	assert.Empty(t, snap.Days)

	// No merge may happen without data.
	s.AssertNotCalled(t, "Save", mock.Anything)
}

func TestRefreshKeepsLastKnownGood(t *testing.T) {
	f := &mockFetcher{}
	s := &mockHistory{}
	expectFetches(f)
	expectStore(s)

	c := New(f, s, time.Hour)
	require.NoError(t, c.Refresh(context.Background()))

	// Next cycle the session is gone for good.
	f2 := &mockFetcher{}
	f2.On("Authenticate", mock.Anything).Return(false)
	c.fetcher = f2

	require.Error(t, c.Refresh(context.Background()))
	assert.Equal(t, StateFailed, c.State())
	assert.Error(t, c.LastError())

	snap, ok := c.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 31.34, snap.Metrics[types.MetricTotalUsage], "prior snapshot stays published")
}

func TestRefreshReauthenticatesOnce(t *testing.T) {
	f := &mockFetcher{}
	s := &mockHistory{}
	expired := &mercury.AuthExpiredError{Err: errors.New("tokens expired")}

	f.On("Authenticate", mock.Anything).Return(true)
	f.On("Account").Return(testAccount)
	f.On("FetchUsage", mock.Anything, types.GranularityDaily).Return(mercury.RawUsage{}, expired).Once()
	f.On("Reset").Once()
	f.On("FetchUsage", mock.Anything, types.GranularityDaily).Return(testRawDaily(), nil).Once()
	f.On("FetchUsage", mock.Anything, types.GranularityHourly).Return(mercury.RawUsage{}, nil)
	f.On("FetchUsage", mock.Anything, types.GranularityMonthly).Return(mercury.RawUsage{}, nil)
	f.On("FetchBillSummary", mock.Anything).Return(mercury.RawBill{}, nil)
	expectStore(s)

	c := New(f, s, time.Hour)
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, StatePublished, c.State())

	snap, _ := c.Snapshot()
	assert.Equal(t, 31.34, snap.Metrics[types.MetricTotalUsage])
	f.AssertExpectations(t)
}

func TestRefreshSecondExpiryFails(t *testing.T) {
	f := &mockFetcher{}
	s := &mockHistory{}
	expired := &mercury.AuthExpiredError{Err: errors.New("tokens expired")}

	f.On("Authenticate", mock.Anything).Return(true)
	f.On("FetchUsage", mock.Anything, types.GranularityDaily).Return(mercury.RawUsage{}, expired)
	f.On("Reset").Once()

	c := New(f, s, time.Hour)
	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, mercury.IsAuthExpired(err))
	assert.Equal(t, StateFailed, c.State())

	// One reset only: the retry's expiry ends the cycle.
	f.AssertNumberOfCalls(t, "Reset", 1)
	f.AssertNumberOfCalls(t, "FetchUsage", 2)
}

func TestRefreshPartialFailure(t *testing.T) {
	f := &mockFetcher{}
	s := &mockHistory{}
	upstream := &mercury.UpstreamError{Op: "bill summary", Err: errors.New("503")}

	f.On("Authenticate", mock.Anything).Return(true)
	f.On("Account").Return(testAccount)
	f.On("FetchUsage", mock.Anything, types.GranularityDaily).Return(testRawDaily(), nil)
	f.On("FetchUsage", mock.Anything, types.GranularityHourly).Return(mercury.RawUsage{}, upstream)
	f.On("FetchUsage", mock.Anything, types.GranularityMonthly).Return(testRawMonthly(), nil)
	f.On("FetchBillSummary", mock.Anything).Return(nil, upstream)
	expectStore(s)

	c := New(f, s, time.Hour)
	require.NoError(t, c.Refresh(context.Background()), "one failed category does not abort the cycle")

	snap, _ := c.Snapshot()
	assert.Equal(t, 31.34, snap.Metrics[types.MetricTotalUsage])
	assert.Equal(t, 0.0, snap.Metrics[types.MetricHourlyUsage], "failed category degrades to zero")
	assert.Equal(t, "", snap.Metrics[types.MetricBillAccountID])
	assert.Equal(t, 245.7, snap.Metrics[types.MetricMonthlyUsage])
}

func TestRefreshSaveFailureNonFatal(t *testing.T) {
	f := &mockFetcher{}
	s := &mockHistory{}
	expectFetches(f)

	s.On("Load", mock.Anything)
	s.On("MergeDays", mock.Anything)
	s.On("MergeTemps", mock.Anything)
	s.On("MergeHours", mock.Anything)
	s.On("Save", mock.Anything).Return(errors.New("disk full"))
	s.On("Snapshot").Return(types.ExtendedHistory{TotalDays: 2})

	c := New(f, s, time.Hour)
	require.NoError(t, c.Refresh(context.Background()), "a failed persist does not abort the cycle")

	snap, _ := c.Snapshot()
	assert.Equal(t, 31.34, snap.Metrics[types.MetricTotalUsage])
}

func TestRefreshSerializesCycles(t *testing.T) {
	f := &mockFetcher{}
	expectFetches(f)

	// A real store: its maps assume a single writer, so overlapping
	// cycles from the ticker loop and forced updates must queue.
	c := New(f, history.NewStore(t.TempDir()), time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				assert.NoError(t, c.Refresh(context.Background()))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, StatePublished, c.State())
	snap, ok := c.Snapshot()
	require.True(t, ok)
	assert.Len(t, snap.Days, 2, "no torn snapshot after overlapping refreshes")
	assert.Equal(t, 2, snap.Metrics[types.MetricTotalHistoricalDays])
}

func TestComposeWithoutPeriods(t *testing.T) {
	c := New(&mockFetcher{}, &mockHistory{}, time.Hour)
	f := c.fetcher.(*mockFetcher)
	f.On("Account").Return(types.AccountContext{})

	snap := c.compose(types.UsageData{}, types.HourlyData{}, types.MonthlyData{}, types.BillSummary{}, types.ExtendedHistory{})
	assert.Equal(t, 0.0, snap.Metrics[types.MetricMonthlyUsageCost])
	assert.Equal(t, "", snap.Metrics[types.MetricMonthlyBillingEndDate])
	assert.NotEmpty(t, snap.Metrics[types.MetricLastUpdated])
}

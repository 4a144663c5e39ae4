package coordinator

import (
	"context"

	"github.com/mercurymon/mercurymon/pkg/mercury"
	"github.com/mercurymon/mercurymon/pkg/types"
	"github.com/stretchr/testify/mock"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Authenticate(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *mockFetcher) Reset() {
	m.Called()
}

func (m *mockFetcher) Account() types.AccountContext {
	args := m.Called()
	return args.Get(0).(types.AccountContext)
}

func (m *mockFetcher) FetchUsage(ctx context.Context, g types.Granularity) (mercury.RawUsage, error) {
	args := m.Called(ctx, g)
	return args.Get(0).(mercury.RawUsage), args.Error(1)
}

func (m *mockFetcher) FetchBillSummary(ctx context.Context) (mercury.RawBill, error) {
	args := m.Called(ctx)
	raw, _ := args.Get(0).(mercury.RawBill)
	return raw, args.Error(1)
}

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) Load(ctx context.Context) {
	m.Called(ctx)
}

func (m *mockHistory) MergeDays(days []types.UsageDay) {
	m.Called(days)
}

func (m *mockHistory) MergeTemps(temps []types.TemperatureDay) {
	m.Called(temps)
}

func (m *mockHistory) MergeHours(hours []types.UsageHour) {
	m.Called(hours)
}

func (m *mockHistory) Save(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockHistory) Snapshot() types.ExtendedHistory {
	args := m.Called()
	return args.Get(0).(types.ExtendedHistory)
}

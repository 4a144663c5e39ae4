package mercury

import (
	"context"

	"github.com/mercurymon/mercurymon/pkg/types"
	"github.com/stretchr/testify/mock"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Login(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockClient) AccountContext(ctx context.Context) (types.AccountContext, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).(types.AccountContext), args.Error(1)
	}
	return types.AccountContext{}, nil
}

func (m *mockClient) Usage(ctx context.Context, acct types.AccountContext, g types.Granularity) (RawUsage, error) {
	args := m.Called(ctx, acct, g)
	if len(args) > 0 {
		return args.Get(0).(RawUsage), args.Error(1)
	}
	return RawUsage{}, nil
}

func (m *mockClient) BillSummary(ctx context.Context, acct types.AccountContext) (RawBill, error) {
	args := m.Called(ctx, acct)
	if len(args) > 0 {
		if args.Get(0) == nil {
			return nil, args.Error(1)
		}
		return args.Get(0).(RawBill), args.Error(1)
	}
	return nil, nil
}

package mercury

import (
	"context"
	"log/slog"
	"sync"

	"github.com/levenlabs/go-lflag"
	"github.com/mercurymon/mercurymon/pkg/log"
	"github.com/mercurymon/mercurymon/pkg/types"
)

// Adapter wraps one upstream client with an explicitly owned session. It
// performs no I/O beyond delegating to the client, and it never retries:
// the coordinator owns the single re-authentication retry per cycle.
type Adapter struct {
	mu            sync.Mutex
	client        Client
	authenticated bool
	account       types.AccountContext
}

// NewAdapter returns an Adapter delegating to the given client.
func NewAdapter(c Client) *Adapter {
	return &Adapter{client: c}
}

// Configured sets up the Adapter against the real supplier API.
// It registers flags for configuration.
func Configured() *Adapter {
	email := lflag.RequiredString("mercury-email", "Supplier account email")
	password := lflag.RequiredString("mercury-password", "Supplier account password")
	baseURL := lflag.String("mercury-base-url", "https://apis.mercury.co.nz/selfservice", "Supplier API base URL")

	a := &Adapter{}

	lflag.Do(func() {
		a.client = NewAPI(*baseURL, *email, *password)
	})

	return a
}

// Authenticate establishes or reuses a session and resolves the account
// context. Idempotent: if already authenticated it returns true without
// side effects. It never returns an error; any failure is logged and
// reported as false.
func (a *Adapter) Authenticate(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.authenticated {
		log.Ctx(ctx).DebugContext(ctx, "already authenticated")
		return true
	}

	if err := a.client.Login(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "authentication failed", slog.Any("error", err))
		return false
	}

	acct, err := a.client.AccountContext(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to resolve account context", slog.Any("error", err))
		return false
	}

	a.authenticated = true
	a.account = acct
	log.Ctx(ctx).InfoContext(ctx, "authenticated with supplier",
		slog.String("customerID", acct.CustomerID),
		slog.String("accountID", acct.AccountID),
		slog.String("serviceID", acct.ServiceID),
	)
	return true
}

// Reset marks the session as expired so the next Authenticate performs a
// fresh login.
func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.authenticated = false
}

// Account returns the resolved account context. Zero until Authenticate
// has succeeded.
func (a *Adapter) Account() types.AccountContext {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.account
}

// FetchUsage fetches usage data at the given granularity, authenticating
// first if needed. Errors are classified into the taxonomy: AuthError when
// authentication cannot be established, AuthExpiredError when the upstream
// signals token expiry, UpstreamError otherwise.
func (a *Adapter) FetchUsage(ctx context.Context, g types.Granularity) (RawUsage, error) {
	if !a.Authenticate(ctx) {
		return RawUsage{}, &AuthError{Err: errUnauthenticated}
	}

	raw, err := a.client.Usage(ctx, a.Account(), g)
	if err != nil {
		return RawUsage{}, Classify("usage/"+string(g), err)
	}
	return raw, nil
}

// FetchBillSummary fetches the billing position, authenticating first if
// needed. Errors are classified like FetchUsage's.
func (a *Adapter) FetchBillSummary(ctx context.Context) (RawBill, error) {
	if !a.Authenticate(ctx) {
		return nil, &AuthError{Err: errUnauthenticated}
	}

	raw, err := a.client.BillSummary(ctx, a.Account())
	if err != nil {
		return nil, Classify("bill summary", err)
	}
	return raw, nil
}

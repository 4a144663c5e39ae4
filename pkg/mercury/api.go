package mercury

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mercurymon/mercurymon/pkg/common"
	"github.com/mercurymon/mercurymon/pkg/log"
	"github.com/mercurymon/mercurymon/pkg/types"
)

const apiLoginPath = "customer/login"

// API implements the Client interface against the supplier's self-service
// web API.
type API struct {
	client     *http.Client
	baseURL    string
	email      string
	password   string
	mu         sync.Mutex
	tokenStr   string
	customerID string
}

// NewAPI returns an API client for the given credentials.
func NewAPI(baseURL, email, password string) *API {
	return &API{
		client:   common.HTTPClient(time.Minute),
		baseURL:  baseURL,
		email:    email,
		password: password,
	}
}

type loginResult struct {
	Token      string `json:"token"`
	CustomerID string `json:"customerId"`
}

// Login establishes a fresh session, replacing any stored token.
func (a *API) Login(ctx context.Context) error {
	if a.email == "" {
		return errors.New("missing email")
	}
	if a.password == "" {
		return errors.New("missing password")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokenStr = ""

	req, err := a.newPostJSONRequest(ctx, apiLoginPath, map[string]string{
		"email":    a.email,
		"password": a.password,
	})
	if err != nil {
		return err
	}

	var res loginResult
	if err := a.doRequest(req, &res); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "mercury login failed", slog.Any("error", err))
		return fmt.Errorf("login failed: %w", err)
	}
	if res.Token == "" {
		return errors.New("login returned no token")
	}

	a.tokenStr = res.Token
	a.customerID = res.CustomerID
	log.Ctx(ctx).DebugContext(ctx, "mercury login success", slog.String("customerID", res.CustomerID))
	return nil
}

type accountResult struct {
	AccountID string `json:"accountId"`
	Services  []struct {
		ServiceID    string `json:"serviceId"`
		ServiceGroup string `json:"serviceGroup"`
	} `json:"services"`
}

// AccountContext resolves the customer, account and electricity service IDs
// for the logged-in user. The first account with an electricity service
// wins; accounts without one are skipped.
func (a *API) AccountContext(ctx context.Context) (types.AccountContext, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	req, err := a.newGetRequest(ctx, fmt.Sprintf("customer/%s/accounts", a.customerID), nil)
	if err != nil {
		return types.AccountContext{}, err
	}

	var accounts []accountResult
	if err := a.doRequest(req, &accounts); err != nil {
		return types.AccountContext{}, fmt.Errorf("failed to list accounts: %w", err)
	}

	for _, acct := range accounts {
		for _, svc := range acct.Services {
			if strings.EqualFold(svc.ServiceGroup, "electricity") {
				return types.AccountContext{
					CustomerID: a.customerID,
					AccountID:  acct.AccountID,
					ServiceID:  svc.ServiceID,
				}, nil
			}
		}
	}
	return types.AccountContext{}, fmt.Errorf("no electricity service found across %d accounts", len(accounts))
}

// Usage fetches usage data at the given granularity.
func (a *API) Usage(ctx context.Context, acct types.AccountContext, g types.Granularity) (RawUsage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	params := url.Values{}
	params.Set("interval", string(g))

	endpoint := fmt.Sprintf("customer/%s/account/%s/service/%s/usage",
		acct.CustomerID, acct.AccountID, acct.ServiceID)
	req, err := a.newGetRequest(ctx, endpoint, params)
	if err != nil {
		return RawUsage{}, err
	}

	var res RawUsage
	if err := a.doRequest(req, &res); err != nil {
		return RawUsage{}, fmt.Errorf("usage fetch (%s) failed: %w", g, err)
	}

	log.Ctx(ctx).DebugContext(ctx, "mercury usage fetched",
		slog.String("granularity", string(g)),
		slog.Float64("totalUsage", res.TotalUsage),
		slog.Int("dataPoints", res.DataPoints),
		slog.Int("dailyEntries", len(res.DailyUsage)),
	)
	return res, nil
}

// BillSummary fetches the account's billing position.
func (a *API) BillSummary(ctx context.Context, acct types.AccountContext) (RawBill, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	endpoint := fmt.Sprintf("customer/%s/account/%s/bill/summary", acct.CustomerID, acct.AccountID)
	req, err := a.newGetRequest(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var res RawBill
	if err := a.doRequest(req, &res); err != nil {
		return nil, fmt.Errorf("bill summary fetch failed: %w", err)
	}
	return res, nil
}

func (a *API) newGetRequest(ctx context.Context, endpoint string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path, err = url.JoinPath(u.Path, endpoint)
	if err != nil {
		return nil, err
	}

	u.RawQuery = params.Encode()
	return http.NewRequestWithContext(ctx, "GET", u.String(), nil)
}

func (a *API) newPostJSONRequest(ctx context.Context, endpoint string, data interface{}) (*http.Request, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path, err = url.JoinPath(u.Path, endpoint)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// doRequest executes the request and decodes the JSON response into dest.
// Must be called with a.mu held. A 401 on an authenticated request means
// the session token expired; the error message carries the marker Classify
// looks for.
func (a *API) doRequest(req *http.Request, dest interface{}) error {
	isLogin := strings.HasSuffix(req.URL.Path, apiLoginPath)
	if !isLogin {
		req.Header.Set("Authorization", "Bearer "+a.tokenStr)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized && !isLogin && a.tokenStr != "" {
			log.Ctx(req.Context()).DebugContext(req.Context(), "mercury session token rejected")
			a.tokenStr = ""
			return errors.New("tokens expired")
		}
		var ae apiError
		if err := json.Unmarshal(body, &ae); err == nil && ae.Message != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, ae.Message)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		log.Ctx(req.Context()).ErrorContext(req.Context(), "failed to decode mercury response",
			slog.Any("error", err), slog.String("url", req.URL.String()))
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

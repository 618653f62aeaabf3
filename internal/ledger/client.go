// Package ledger is the HTTP client of the wallet service that holds bounty escrow.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/devasignhq/devasign-api-sub002/internal/config"
	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 50

	// EntryTypePayment is the ledger entry type of a plain transfer.
	EntryTypePayment = "payment"
)

// Client implements core.PaymentLedger over the wallet service REST API.
type Client struct {
	baseURL  string
	http     *http.Client
	timeout  time.Duration
	pageSize int
	logger   *slog.Logger
}

var _ core.PaymentLedger = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The API key is not applied
// to a replaced client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithPageSize sets how many entries Entries requests per page.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// NewClient builds a ledger client. The API key is sent as a bearer token. An empty
// URL yields a client whose calls fail with a Configuration error.
func NewClient(cfg config.LedgerConfig, logger *slog.Logger, opts ...Option) *Client {
	hc := &http.Client{}
	if cfg.APIKey != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey})
		hc = oauth2.NewClient(context.Background(), ts)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		baseURL:  cfg.URL,
		http:     hc,
		timeout:  timeout,
		pageSize: defaultPageSize,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type transferRequest struct {
	EscrowRef   string      `json:"escrowRef"`
	Destination string      `json:"destination"`
	Amount      core.Amount `json:"amount"`
}

type transferResponse struct {
	TxHash string `json:"txHash"`
}

type entriesPage struct {
	Entries    []core.LedgerEntry `json:"entries"`
	NextCursor string             `json:"nextCursor"`
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ReleaseFunds pays amount from the escrow account to destination.
func (c *Client) ReleaseFunds(ctx context.Context, escrowRef, destination string, amount core.Amount) (string, error) {
	return c.transfer(ctx, "/v1/escrow/release", escrowRef, destination, amount)
}

// Refund returns amount from the escrow account to destination.
func (c *Client) Refund(ctx context.Context, escrowRef, destination string, amount core.Amount) (string, error) {
	return c.transfer(ctx, "/v1/escrow/refund", escrowRef, destination, amount)
}

func (c *Client) transfer(ctx context.Context, path, escrowRef, destination string, amount core.Amount) (string, error) {
	if amount <= 0 {
		return "", core.Errorf(core.KindValidation, "transfer amount must be positive, got %s", amount)
	}
	var out transferResponse
	err := c.do(ctx, http.MethodPost, path, transferRequest{
		EscrowRef:   escrowRef,
		Destination: destination,
		Amount:      amount,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.TxHash == "" {
		return "", core.NewError(core.KindPayment, "ledger accepted the transfer but returned no transaction hash", nil)
	}
	c.logger.Info("ledger transfer submitted", "path", path, "amount", amount.String(), "tx_hash", out.TxHash)
	return out.TxHash, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Entries lazily pages through the entries of account recorded after sinceCursor.
// Pages are fetched only as the caller consumes the sequence. A failed page yields
// its error and ends the sequence.
func (c *Client) Entries(ctx context.Context, account, sinceCursor string) iter.Seq2[core.LedgerEntry, error] {
	return func(yield func(core.LedgerEntry, error) bool) {
		cursor := sinceCursor
		for {
			q := url.Values{}
			q.Set("limit", fmt.Sprint(c.pageSize))
			if cursor != "" {
				q.Set("cursor", cursor)
			}
			path := "/v1/accounts/" + url.PathEscape(account) + "/entries?" + q.Encode()

			var page entriesPage
			if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
				yield(core.LedgerEntry{}, err)
				return
			}
			for _, e := range page.Entries {
				if !yield(e, nil) {
					return
				}
			}

			next := page.NextCursor
			if next == "" && len(page.Entries) > 0 {
				next = page.Entries[len(page.Entries)-1].Cursor
			}
			if len(page.Entries) < c.pageSize || next == "" || next == cursor {
				return
			}
			cursor = next
		}
	}
}

// TopUps keeps the incoming payments to account. Errors pass through.
func TopUps(entries iter.Seq2[core.LedgerEntry, error], account string) iter.Seq2[core.LedgerEntry, error] {
	return func(yield func(core.LedgerEntry, error) bool) {
		for e, err := range entries {
			if err != nil {
				if !yield(e, err) {
					return
				}
				continue
			}
			if e.Type != EntryTypePayment || e.To != account {
				continue
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.baseURL == "" {
		return core.NewError(core.KindConfiguration, "payment ledger is not configured", nil).
			WithDetail("missing", []string{"LEDGER_URL"})
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode ledger request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return core.NewError(core.KindConfiguration, "invalid ledger request", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return core.NewError(core.KindTransient, "ledger request failed", err).WithDetail("service", "ledger")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return core.NewError(core.KindTransient, "failed to decode ledger response", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	var eb errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&eb)
	msg := eb.Error.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	var kind core.ErrorKind
	switch code := resp.StatusCode; {
	case code == http.StatusNotFound:
		kind = core.KindNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = core.KindPermission
	case code == http.StatusPaymentRequired || code == http.StatusConflict:
		kind = core.KindPayment
	case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
		kind = core.KindTransient
	default:
		kind = core.KindValidation
	}

	e := core.NewError(kind, "ledger: "+msg, nil).WithDetail("status", resp.StatusCode)
	if eb.Error.Code != "" {
		e.WithDetail("ledger_code", eb.Error.Code)
	}
	return e
}

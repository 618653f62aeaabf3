package ledger

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devasignhq/devasign-api-sub002/internal/config"
	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/logger"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.LedgerConfig{URL: srv.URL, APIKey: "secret", Timeout: time.Second}, logger.Discard(), opts...)
}

func TestReleaseFunds(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/escrow/release", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"escrowRef":"GESCROW","destination":"GDEV","amount":"50.0000001"}`, string(body))

		_, _ = w.Write([]byte(`{"txHash":"abc123"}`))
	}))

	hash, err := c.ReleaseFunds(t.Context(), "GESCROW", "GDEV", 50*core.AmountScale+1)

	require.NoError(t, err)
	assert.Equal(t, "abc123", hash)
}

func TestTransferRejectsNonPositiveAmount(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected")
	}))

	_, err := c.Refund(t.Context(), "GESCROW", "GREFUND", 0)
	assert.True(t, core.IsKind(err, core.KindValidation))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   core.ErrorKind
	}{
		{http.StatusBadRequest, core.KindValidation},
		{http.StatusUnauthorized, core.KindPermission},
		{http.StatusPaymentRequired, core.KindPayment},
		{http.StatusNotFound, core.KindNotFound},
		{http.StatusConflict, core.KindPayment},
		{http.StatusTooManyRequests, core.KindTransient},
		{http.StatusBadGateway, core.KindTransient},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"code":"op_underfunded","message":"escrow balance too low"}}`))
			}))

			_, err := c.ReleaseFunds(t.Context(), "GESCROW", "GDEV", 10)

			e, ok := core.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, e.Kind)
			assert.Equal(t, tt.status, e.Details["status"])
			assert.Equal(t, "op_underfunded", e.Details["ledger_code"])
			assert.Contains(t, e.Message, "escrow balance too low")
		})
	}
}

func TestMissingHashIsPaymentError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := c.ReleaseFunds(t.Context(), "GESCROW", "GDEV", 10)
	assert.True(t, core.IsKind(err, core.KindPayment))
}

func TestUnconfiguredClient(t *testing.T) {
	c := NewClient(config.LedgerConfig{}, logger.Discard())

	err := c.Ping(t.Context())
	assert.True(t, core.IsKind(err, core.KindConfiguration))

	for _, err := range c.Entries(t.Context(), "GESCROW", "") {
		assert.True(t, core.IsKind(err, core.KindConfiguration))
	}
}

func TestNetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(config.LedgerConfig{URL: srv.URL}, logger.Discard())

	assert.True(t, core.IsKind(c.Ping(t.Context()), core.KindTransient))
}

// pagedLedger serves 5 entries, 2 per page.
func pagedLedger(t *testing.T, requests *[]string) http.Handler {
	entries := make([]core.LedgerEntry, 5)
	for i := range entries {
		entries[i] = core.LedgerEntry{
			ID:     fmt.Sprintf("e%d", i+1),
			Cursor: strconv.Itoa(i + 1),
			Type:   EntryTypePayment,
			Amount: core.Amount(i+1) * core.AmountScale,
			To:     "GESCROW",
		}
	}
	entries[1].Type = "create_account"
	entries[3].To = "GSOMEONE"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/GESCROW/entries", r.URL.Path)
		*requests = append(*requests, r.URL.Query().Get("cursor"))

		start := 0
		if c := r.URL.Query().Get("cursor"); c != "" {
			start, _ = strconv.Atoi(c)
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		end := min(start+limit, len(entries))

		page := entriesPage{Entries: entries[start:end]}
		if end < len(entries) {
			page.NextCursor = strconv.Itoa(end)
		}
		require.NoError(t, json.NewEncoder(w).Encode(page))
	})
}

func TestEntries_PagesLazily(t *testing.T) {
	var requests []string
	c := newTestClient(t, pagedLedger(t, &requests), WithPageSize(2))

	var ids []string
	for e, err := range c.Entries(t.Context(), "GESCROW", "") {
		require.NoError(t, err)
		ids = append(ids, e.ID)
		if len(ids) == 3 {
			break
		}
	}

	assert.Equal(t, []string{"e1", "e2", "e3"}, ids)
	// Stopping early leaves the last page unfetched.
	assert.Equal(t, []string{"", "2"}, requests)
}

func TestEntries_ResumesFromCursor(t *testing.T) {
	var requests []string
	c := newTestClient(t, pagedLedger(t, &requests), WithPageSize(2))

	var ids []string
	for e, err := range c.Entries(t.Context(), "GESCROW", "3") {
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	assert.Equal(t, []string{"e4", "e5"}, ids)
	assert.Equal(t, []string{"3", "5"}, requests)
}

func TestTopUps(t *testing.T) {
	var requests []string
	c := newTestClient(t, pagedLedger(t, &requests), WithPageSize(2))

	var amounts []core.Amount
	for e, err := range TopUps(c.Entries(t.Context(), "GESCROW", ""), "GESCROW") {
		require.NoError(t, err)
		amounts = append(amounts, e.Amount)
	}

	assert.Equal(t, []core.Amount{1 * core.AmountScale, 3 * core.AmountScale, 5 * core.AmountScale}, amounts)
	assert.Equal(t, []string{"", "2", "4"}, requests)
}

func TestEntries_StopsOnError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	var errs int
	for _, err := range c.Entries(t.Context(), "GESCROW", "") {
		require.Error(t, err)
		assert.True(t, core.IsKind(err, core.KindTransient))
		errs++
	}
	assert.Equal(t, 1, errs)
}

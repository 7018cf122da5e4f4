//go:build integration

package tests

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/floroz/auctioneer/internal/adapters/api"
	adapterdb "github.com/floroz/auctioneer/internal/adapters/database"
	"github.com/floroz/auctioneer/internal/adapters/funds"
	"github.com/floroz/auctioneer/internal/domain/auction"
	"github.com/floroz/auctioneer/internal/domain/ledger"
	"github.com/floroz/auctioneer/pkg/auth"
	pkgdb "github.com/floroz/auctioneer/pkg/database"
	"github.com/floroz/auctioneer/pkg/testhelpers"
)

// stubTreasury stands in for the external treasury service. It records
// transfers and can be told to reject them.
type stubTreasury struct {
	server  *httptest.Server
	failing atomic.Bool

	mu        sync.Mutex
	transfers []transferCall
}

type transferCall struct {
	To     uuid.UUID `json:"to"`
	Amount int64     `json:"amount"`
}

func newStubTreasury(t *testing.T) *stubTreasury {
	t.Helper()
	st := &stubTreasury{}
	st.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if st.failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var call transferCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		st.mu.Lock()
		st.transfers = append(st.transfers, call)
		st.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(st.server.Close)
	return st
}

func (st *stubTreasury) calls() []transferCall {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]transferCall(nil), st.transfers...)
}

type testApp struct {
	pool     *pgxpool.Pool
	server   *httptest.Server
	signer   *auth.Signer
	treasury *stubTreasury
}

// setupApp wires the full engine against a throwaway Postgres container and
// serves it over HTTP the same way cmd/api does.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	testDB := testhelpers.NewTestDatabase(t, "../migrations")
	t.Cleanup(testDB.Close)

	treasury := newStubTreasury(t)
	signer := newTestSigner(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	txManager := pkgdb.NewPostgresTransactionManager(testDB.Pool, 3*time.Second)
	itemRepo := adapterdb.NewPostgresItemRepository(testDB.Pool)
	bidRepo := adapterdb.NewPostgresBidHistoryRepository(testDB.Pool)
	ledgerRepo := adapterdb.NewPostgresLedgerRepository(testDB.Pool)
	outboxRepo := adapterdb.NewPostgresOutboxRepository(testDB.Pool)
	transferer := funds.NewHTTPTransferer(treasury.server.URL, 5*time.Second)

	engine := auction.NewEngine(txManager, itemRepo, bidRepo, ledger.NewLedger(ledgerRepo), outboxRepo, transferer)
	handler := api.NewEngineHandler(engine, nil, logger)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(signer))
		handler.RegisterRoutes(r)
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &testApp{
		pool:     testDB.Pool,
		server:   server,
		signer:   signer,
		treasury: treasury,
	}
}

func newTestSigner(t *testing.T) *auth.Signer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})

	signer, err := auth.NewSigner(privatePEM, publicPEM, "auctioneer")
	require.NoError(t, err)
	return signer
}

// do sends an authenticated JSON request as the given account and returns the
// status code and raw body.
func (a *testApp) do(t *testing.T, method, path string, account uuid.UUID, body any) (int, []byte) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reqBody)
	require.NoError(t, err)

	token, _, err := a.signer.GenerateToken(account, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type itemResponse struct {
	ItemID        uuid.UUID  `json:"item_id"`
	Owner         uuid.UUID  `json:"owner"`
	HighestBid    int64      `json:"highest_bid"`
	HighestBidder *uuid.UUID `json:"highest_bidder"`
	Active        bool       `json:"active"`
}

type withdrawResponse struct {
	ItemID  uuid.UUID `json:"item_id"`
	Account uuid.UUID `json:"account"`
	Amount  int64     `json:"amount"`
}

type profitResponse struct {
	Account uuid.UUID `json:"account"`
	Profit  int64     `json:"profit"`
}

type bidRecordResponse struct {
	ItemID  uuid.UUID `json:"item_id"`
	Account uuid.UUID `json:"account"`
	Amount  int64     `json:"amount"`
}

func (a *testApp) getProfit(t *testing.T, account uuid.UUID) int64 {
	t.Helper()
	status, raw := a.do(t, http.MethodGet, "/v1/profit", account, nil)
	require.Equal(t, http.StatusOK, status)
	return decode[profitResponse](t, raw).Profit
}

func (a *testApp) countOutboxEvents(t *testing.T, eventType string) int {
	t.Helper()
	var count int
	err := a.pool.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM outbox_events WHERE event_type = $1", eventType).Scan(&count)
	require.NoError(t, err)
	return count
}

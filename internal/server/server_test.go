package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/upstreamlabs/fieldsync/internal/cache"
	"github.com/upstreamlabs/fieldsync/internal/events"
	"github.com/upstreamlabs/fieldsync/internal/feed"
	"github.com/upstreamlabs/fieldsync/internal/gap"
	"github.com/upstreamlabs/fieldsync/internal/hierarchy"
	"github.com/upstreamlabs/fieldsync/internal/model"
	"github.com/upstreamlabs/fieldsync/internal/mutation"
	"github.com/upstreamlabs/fieldsync/internal/sim"
)

type testStack struct {
	server   *httptest.Server
	notifier *events.Notifier
	sim      *sim.Client
}

// newTestStack wires the full sync core against the in-process data
// source and serves it through an httptest server.
func newTestStack(t *testing.T) *testStack {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	simClient, err := sim.NewClient(&sim.ClientConfig{Logger: log, Seed: 99})
	require.NoError(t, err)

	store, err := hierarchy.NewStore(&hierarchy.StoreConfig{Logger: log})
	require.NoError(t, err)
	engine, err := gap.NewEngine(&gap.EngineConfig{Logger: log, Store: store})
	require.NoError(t, err)
	source, err := feed.NewSource(&feed.SourceConfig{
		Logger: log,
		Client: simClient,
		Store:  store,
		Gap:    engine,
	})
	require.NoError(t, err)

	cacheCoord, err := cache.NewCoordinator(&cache.CoordinatorConfig{
		Logger: log,
		Fetch:  source.Fetch,
	})
	require.NoError(t, err)

	mutations, err := mutation.NewCoordinator(&mutation.CoordinatorConfig{
		Logger: log,
		Client: simClient,
		Cache:  cacheCoord,
	})
	require.NoError(t, err)

	notifier, err := events.NewNotifier(&events.NotifierConfig{
		Logger: log,
		Client: simClient,
		Cache:  cacheCoord,
	})
	require.NoError(t, err)

	s, err := NewServer(&ServerConfig{
		Logger:    log,
		Cache:     cacheCoord,
		Mutations: mutations,
		Notifier:  notifier,
		Hierarchy: store,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(s.Mux)
	t.Cleanup(ts.Close)
	return &testStack{server: ts, notifier: notifier, sim: simClient}
}

func (s *testStack) get(t *testing.T, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(s.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (s *testStack) post(t *testing.T, path string, body any) (*http.Response, string) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(s.server.URL+path, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestServer_ResourceEndpoints(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)

	var assets []model.Asset
	resp := stack.get(t, "/api/nodes", &assets)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.Len(t, assets, 2)
	for _, f := range assets[0].Units[0].Facilities {
		require.Contains(t, f.Networks, model.NetworkFlaredGas)
	}

	var scoped []model.Asset
	resp = stack.get(t, "/api/nodes?asset=east", &scoped)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, scoped, 1)
	require.Equal(t, model.AssetEast, scoped[0].ID)

	var summary model.Summary
	resp = stack.get(t, "/api/summary", &summary)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, summary.AssetCount)

	var drivers []model.GapDriver
	resp = stack.get(t, "/api/gap-drivers?limit=3", &drivers)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, drivers)
	require.LessOrEqual(t, len(drivers), 3)

	var alerts []model.Alert
	resp = stack.get(t, "/api/alerts?status=active", &alerts)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, alerts)
}

func TestServer_UnknownQueryParamRejected(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	resp := stack.get(t, "/api/nodes?assett=east", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_HubPerformance(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)

	// Populate the hierarchy store through the nodes endpoint first.
	resp := stack.get(t, "/api/nodes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Asset model.AssetID        `json:"asset"`
		Unit  model.ProductionUnit `json:"unit"`
	}
	resp = stack.get(t, "/api/hubs/east-hub-alpha/performance", &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, model.AssetEast, out.Asset)
	require.Equal(t, "east-hub-alpha", out.Unit.ID)
	require.NotEmpty(t, out.Unit.Facilities)

	resp = stack.get(t, "/api/hubs/no-such-hub/performance", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_TerminalOperations(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)

	var ops model.TerminalOperations
	resp := stack.get(t, "/api/terminals/east-term-1/operations", &ops)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "east-term-1", ops.TerminalID)
	require.Greater(t, ops.EnduranceDays, 0.0)

	resp = stack.get(t, "/api/terminals/no-such-terminal/operations", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_MutationEndpoint(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)

	var opts []model.OptimisationAction
	resp := stack.get(t, "/api/optimisations", &opts)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, opts)
	id := opts[0].ID

	resp, body := stack.post(t, fmt.Sprintf("/api/optimisations/%s/acknowledge", id), map[string]string{"user": "ops1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated model.OptimisationAction
	require.NoError(t, json.Unmarshal([]byte(body), &updated))
	require.Equal(t, model.OptimisationAcknowledged, updated.Status)
	require.Equal(t, "ops1", updated.AcknowledgedBy)

	// Same action again conflicts with the new state.
	resp, body = stack.post(t, fmt.Sprintf("/api/optimisations/%s/acknowledge", id), nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Contains(t, body, "conflict")
}

func TestServer_MutationInvalidBody(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	resp, err := http.Post(stack.server.URL+"/api/alerts/x/acknowledge", "application/json", strings.NewReader("{nope"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_ClientErrorStatusPassesThrough(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	stack.sim.FailNextFetches(1, 403)

	resp := stack.get(t, "/api/alerts", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)

	var out map[string]string
	resp := stack.get(t, "/health", &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", out["status"])
}

func TestServer_EventsWebsocket(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)

	url := "ws" + strings.TrimPrefix(stack.server.URL, "http") + "/api/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The handler registers its listener after the upgrade completes.
	time.Sleep(100 * time.Millisecond)

	sent := model.Event{
		Type:      model.EventKPIUpdate,
		Timestamp: time.Now().UTC(),
		Asset:     model.AssetEast,
		NodeID:    "east-fs-1",
	}
	stack.notifier.Handle(sent)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var got model.Event
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, sent.Type, got.Type)
	require.Equal(t, sent.Asset, got.Asset)
	require.Equal(t, sent.NodeID, got.NodeID)
}

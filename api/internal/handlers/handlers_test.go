package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"netshield-detector/internal/aggregator"
	"netshield-detector/internal/alert"
	"netshield-detector/internal/classifier"
	"netshield-detector/internal/model"
	"netshield-detector/internal/pipeline"
	"netshield-detector/internal/simulator"
	"netshield-detector/internal/storage"
	"netshield-detector/internal/utils"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store     *storage.MemoryStore
	processor *pipeline.Processor
	router    *mux.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	config := utils.GetDefaultConfig()
	store := storage.NewMemoryStore(logger)

	cls := classifier.NewRuleClassifier(config.Classifier, logger)
	cls.SetRandom(func() float64 { return 0 })

	deduper := aggregator.NewDeduper(64, 1000, time.Minute, logger)
	dispatcher := alert.NewDispatcher(logger, alert.NewMetrics())
	processor := pipeline.NewProcessor(cls, store, deduper, dispatcher, alert.NewMetrics(), logger)
	generator := simulator.NewGenerator(7)

	h := NewHandlers(store, processor, cls, generator, config, logger)

	router := mux.NewRouter()
	router.Use(CORSMiddleware)
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/classify", h.Classify).Methods("POST", "OPTIONS")
	api.HandleFunc("/demo", h.Demo).Methods("GET", "OPTIONS")
	api.HandleFunc("/alerts/top-sources", h.GetTopSources).Methods("GET")
	api.HandleFunc("/alerts/top-types", h.GetTopTypes).Methods("GET")
	api.HandleFunc("/stream/alerts", h.StreamAlerts).Methods("GET")
	api.HandleFunc("/stream/stats", h.StreamStats).Methods("GET")
	api.HandleFunc("/alerts", h.GetAlerts).Methods("GET")
	api.HandleFunc("/alerts/{id}", h.GetAlert).Methods("GET")
	api.HandleFunc("/stats/traffic", h.GetTrafficStats).Methods("GET")
	api.HandleFunc("/blocked/{id}/unblock", h.UnblockIP).Methods("POST", "OPTIONS")
	api.HandleFunc("/blocked", h.GetBlockedIPs).Methods("GET")
	api.HandleFunc("/blocked", h.BlockIP).Methods("POST", "OPTIONS")
	api.HandleFunc("/rules", h.GetRules).Methods("GET")

	return &testEnv{store: store, processor: processor, router: router}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func classifyBody(features *model.FeatureVector) map[string]interface{} {
	return map[string]interface{}{
		"features":  features,
		"source_ip": "198.51.100.4",
		"dest_ip":   "10.0.0.1",
	}
}

func credentialVector() *model.FeatureVector {
	return &model.FeatureVector{
		ProtocolType:    "tcp",
		Service:         "ftp",
		Flag:            "SF",
		NumFailedLogins: 5,
		IsGuestLogin:    1,
	}
}

func TestClassifyEndpointMalicious(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/v1/classify", classifyBody(credentialVector()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Prediction  model.Verdict `json:"prediction"`
		AlertStored bool          `json:"alert_stored"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, resp.Prediction.IsMalicious)
	assert.Equal(t, model.AttackR2L, resp.Prediction.AttackType)
	assert.Equal(t, model.SeverityCritical, resp.Prediction.Severity)
	assert.True(t, resp.AlertStored)

	// Critical verdicts auto-block the source.
	blocked, err := env.store.BlockedIPs(true)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, "198.51.100.4", blocked[0].IPAddress)
}

func TestClassifyEndpointBadRequests(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body interface{}
	}{
		{"missing features", map[string]interface{}{"source_ip": "1.2.3.4", "dest_ip": "5.6.7.8"}},
		{"missing endpoints", map[string]interface{}{"features": credentialVector()}},
		{"invalid vector", classifyBody(&model.FeatureVector{ProtocolType: "gre", Service: "http", Flag: "SF"})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/api/v1/classify", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeBody(t, rec), "error")
		})
	}
}

func TestClassifyEndpointMalformedJSON(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/api/v1/classify", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("OPTIONS", "/api/v1/classify", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Empty(t, rec.Body.Bytes())
}

func TestDemoEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/v1/demo?action=generate_demo_traffic", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])

	// The demo always writes at least a stats snapshot.
	stats, err := env.store.LatestTrafficStats()
	require.NoError(t, err)
	assert.Greater(t, stats.TotalPackets, int64(0))

	rec = env.do(t, "GET", "/api/v1/demo?action=other", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAlertsFilterAndLimit(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, env.store.InsertAlert(model.Alert{
			ID:         fmt.Sprintf("a-%d", i),
			SourceIP:   "192.0.2.1",
			AttackType: model.AttackDoS,
			Severity:   model.SeverityHigh,
		}))
	}
	require.NoError(t, env.store.InsertAlert(model.Alert{
		ID:         "a-crit",
		SourceIP:   "192.0.2.9",
		AttackType: model.AttackR2L,
		Severity:   model.SeverityCritical,
	}))

	rec := env.do(t, "GET", "/api/v1/alerts?severity=Critical", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["total"])

	rec = env.do(t, "GET", "/api/v1/alerts?limit=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, float64(3), body["total"])
}

func TestGetAlertEnriched(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.store.InsertAlert(model.Alert{
		ID:              "a-1",
		SourceIP:        "192.0.2.1",
		AttackType:      model.AttackR2L,
		Severity:        model.SeverityCritical,
		ConfidenceScore: 0.55,
	}))

	rec := env.do(t, "GET", "/api/v1/alerts/a-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	// Confidence 0.55 sits under the Critical floor of 90.
	assert.Equal(t, float64(90), body["threat_score"])
	assert.Equal(t, "BLOCK IMMEDIATELY", body["recommended_action"])

	rec = env.do(t, "GET", "/api/v1/alerts/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTopSourcesAndTypes(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, env.store.InsertAlert(model.Alert{
			ID:         fmt.Sprintf("d-%d", i),
			SourceIP:   "192.0.2.1",
			AttackType: model.AttackDoS,
			Severity:   model.SeverityHigh,
		}))
	}
	require.NoError(t, env.store.InsertAlert(model.Alert{
		ID:         "p-1",
		SourceIP:   "192.0.2.2",
		AttackType: model.AttackProbe,
		Severity:   model.SeverityMedium,
	}))

	rec := env.do(t, "GET", "/api/v1/alerts/top-sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sources struct {
		Items []aggregator.IPCount `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sources))
	require.Len(t, sources.Items, 2)
	assert.Equal(t, aggregator.IPCount{IP: "192.0.2.1", Count: 3}, sources.Items[0])

	rec = env.do(t, "GET", "/api/v1/alerts/top-types?k=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var types struct {
		Items []aggregator.TypeCount `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &types))
	require.Len(t, types.Items, 1)
	assert.Equal(t, aggregator.TypeCount{Type: model.AttackDoS, Count: 3}, types.Items[0])
}

func TestBlockAndUnblockEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/v1/blocked", map[string]string{"ip_address": "203.0.113.9", "reason": "manual review"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])

	// Blocking again reports success with the duplicate flag.
	rec = env.do(t, "POST", "/api/v1/blocked", map[string]string{"ip_address": "203.0.113.9"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["duplicate"])

	rec = env.do(t, "POST", "/api/v1/blocked", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	blocked, err := env.store.BlockedIPs(true)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	id := blocked[0].ID

	rec = env.do(t, "POST", "/api/v1/blocked/"+id+"/unblock", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	active, err := env.store.BlockedIPs(true)
	require.NoError(t, err)
	assert.Empty(t, active)

	rec = env.do(t, "POST", "/api/v1/blocked/missing/unblock", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// mirrorStore records the block mutations reaching the durable mirror.
type mirrorStore struct {
	*storage.MemoryStore
	blocks   []string
	unblocks []string
}

func (m *mirrorStore) InsertBlockedIP(b model.BlockedIP) error {
	m.blocks = append(m.blocks, b.IPAddress)
	return m.MemoryStore.InsertBlockedIP(b)
}

func (m *mirrorStore) Unblock(id string, at time.Time) error {
	m.unblocks = append(m.unblocks, id)
	return m.MemoryStore.Unblock(id, at)
}

func TestManualBlockAndUnblockReachMirror(t *testing.T) {
	env := newTestEnv(t)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	mirror := &mirrorStore{MemoryStore: storage.NewMemoryStore(logger)}
	env.processor.SetDurableStore(mirror)

	rec := env.do(t, "POST", "/api/v1/blocked", map[string]string{"ip_address": "203.0.113.9"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"203.0.113.9"}, mirror.blocks)

	blocked, err := env.store.BlockedIPs(true)
	require.NoError(t, err)
	require.Len(t, blocked, 1)

	rec = env.do(t, "POST", "/api/v1/blocked/"+blocked[0].ID+"/unblock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{blocked[0].ID}, mirror.unblocks)
}

func TestGetBlockedIPsListing(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.store.InsertBlockedIP(model.BlockedIP{ID: "b-1", IPAddress: "203.0.113.1", IsActive: true}))
	require.NoError(t, env.store.InsertBlockedIP(model.BlockedIP{ID: "b-2", IPAddress: "203.0.113.2", IsActive: false}))

	rec := env.do(t, "GET", "/api/v1/blocked", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["total"])

	rec = env.do(t, "GET", "/api/v1/blocked?active=false", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["total"])
}

func TestGetTrafficStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.store.InsertTrafficStats(model.TrafficStats{ID: "s-1", TotalPackets: 10}))
	require.NoError(t, env.store.InsertTrafficStats(model.TrafficStats{ID: "s-2", TotalPackets: 20}))

	rec := env.do(t, "GET", "/api/v1/stats/traffic", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []model.TrafficStats `json:"items"`
		Total int                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, "s-2", resp.Items[0].ID)
}

func TestStreamAlertsDeliversAndReleasesGoroutines(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream/alerts"

	baseline := runtime.NumGoroutine()

	conns := make([]*websocket.Conn, 0, 8)
	for i := 0; i < 8; i++ {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		if resp != nil {
			resp.Body.Close()
		}
		conns = append(conns, conn)
	}

	require.NoError(t, env.store.InsertAlert(model.Alert{
		ID:         "ws-1",
		SourceIP:   "192.0.2.1",
		AttackType: model.AttackDoS,
		Severity:   model.SeverityHigh,
	}))

	var got model.Alert
	require.NoError(t, conns[0].SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conns[0].ReadJSON(&got))
	assert.Equal(t, "ws-1", got.ID)

	for _, conn := range conns {
		conn.Close()
	}

	// Every per-connection goroutine (read pump, ping, event feed) must
	// unwind once the client hangs up.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= baseline+4 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("goroutines did not settle after disconnect: baseline %d, now %d", baseline, runtime.NumGoroutine())
}

func TestGetRulesEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/v1/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []model.DetectionRule `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 4)
	for _, rule := range resp.Items {
		assert.True(t, rule.Enabled)
		assert.NotEmpty(t, rule.RulePattern)
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"netshield-detector/internal/aggregator"
	"netshield-detector/internal/classifier"
	"netshield-detector/internal/model"
	"netshield-detector/internal/pipeline"
	"netshield-detector/internal/simulator"
	"netshield-detector/internal/storage"
	"netshield-detector/internal/utils"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Handlers struct {
	store      *storage.MemoryStore
	processor  *pipeline.Processor
	classifier *classifier.RuleClassifier
	generator  *simulator.Generator
	config     *utils.Config
	logger     *logrus.Logger
	upgrader   websocket.Upgrader
}

func NewHandlers(store *storage.MemoryStore, processor *pipeline.Processor, cls *classifier.RuleClassifier, generator *simulator.Generator, config *utils.Config, logger *logrus.Logger) *Handlers {
	return &Handlers{
		store:      store,
		processor:  processor,
		classifier: cls,
		generator:  generator,
		config:     config,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Dashboard origins vary per deployment; CORS is handled
				// by the router middleware.
				return true
			},
		},
	}
}

type classifyRequest struct {
	Features *model.FeatureVector `json:"features"`
	SourceIP string               `json:"source_ip"`
	DestIP   string               `json:"dest_ip"`
}

type classifyResponse struct {
	Prediction  model.Verdict `json:"prediction"`
	AlertStored bool          `json:"alert_stored"`
}

// Classify handles POST /classify: run one feature vector through the
// detection pipeline and return the verdict. The verdict comes back even
// when persistence failed.
func (h *Handlers) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	if req.Features == nil {
		writeError(w, http.StatusBadRequest, "features is required")
		return
	}
	if req.SourceIP == "" || req.DestIP == "" {
		writeError(w, http.StatusBadRequest, "source_ip and dest_ip are required")
		return
	}

	result, err := h.processor.Submit(r.Context(), req.Features, req.SourceIP, req.DestIP)
	if err != nil {
		if errors.Is(err, classifier.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Errorf("Classification failed: %v", err)
		writeError(w, http.StatusInternalServerError, "classification failed")
		return
	}

	writeJSON(w, http.StatusOK, classifyResponse{
		Prediction:  result.Verdict,
		AlertStored: result.AlertStored,
	})
}

// Demo handles GET /demo?action=generate_demo_traffic: seed the store with
// one synthetic stats snapshot and a few synthetic alerts.
func (h *Handlers) Demo(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("action") != "generate_demo_traffic" {
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	latest, err := h.store.LatestTrafficStats()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to read traffic stats")
		return
	}

	stats, alerts := h.generator.DemoBatch(latest)
	if err := h.processor.IngestTrafficStats(stats); err != nil {
		h.logger.Errorf("Failed to store demo traffic stats: %v", err)
	}
	for _, a := range alerts {
		if err := h.processor.IngestAlert(a); err != nil {
			h.logger.Errorf("Failed to store demo alert: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *Handlers) GetAlerts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	filter := storage.AlertFilter{
		Severity:   model.Severity(r.URL.Query().Get("severity")),
		AttackType: model.AttackType(r.URL.Query().Get("attack_type")),
		SourceIP:   r.URL.Query().Get("source_ip"),
		Limit:      limit,
	}

	alerts, err := h.store.Alerts(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query alerts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": alerts,
		"total": len(alerts),
	})
}

// GetAlert returns one alert enriched with its threat score and the
// recommended action, as the investigation view shows them.
func (h *Handlers) GetAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	a, err := h.store.AlertByID(id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query alert")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alert":              a,
		"threat_score":       aggregator.ThreatScore(*a),
		"recommended_action": aggregator.RecommendedAction(*a),
	})
}

func (h *Handlers) GetTopSources(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.store.Alerts(storage.AlertFilter{Limit: 100})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query alerts")
		return
	}

	k, _ := strconv.Atoi(r.URL.Query().Get("k"))
	if k <= 0 {
		k = h.config.Aggregator.TopSources
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": aggregator.RankBySourceIP(alerts, k),
	})
}

func (h *Handlers) GetTopTypes(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.store.Alerts(storage.AlertFilter{Limit: 100})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query alerts")
		return
	}

	k, _ := strconv.Atoi(r.URL.Query().Get("k"))
	if k <= 0 {
		k = h.config.Aggregator.TopTypes
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": aggregator.RankByAttackType(alerts, k),
	})
}

func (h *Handlers) GetTrafficStats(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	stats, err := h.store.TrafficStats(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query traffic stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": stats,
		"total": len(stats),
	})
}

func (h *Handlers) GetBlockedIPs(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") != "false"
	blocked, err := h.store.BlockedIPs(activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query blocked IPs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": blocked,
		"total": len(blocked),
	})
}

type blockRequest struct {
	IPAddress string `json:"ip_address"`
	Reason    string `json:"reason"`
}

// BlockIP handles a manual block. Blocking an already-blocked IP is a
// no-op that still reports success.
func (h *Handlers) BlockIP(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	if req.IPAddress == "" {
		writeError(w, http.StatusBadRequest, "ip_address is required")
		return
	}
	if req.Reason == "" {
		req.Reason = "Manually blocked"
	}

	block := model.BlockedIP{
		ID:          uuid.NewString(),
		IPAddress:   req.IPAddress,
		BlockReason: req.Reason,
		BlockedAt:   time.Now(),
		IsActive:    true,
	}
	err := h.processor.Block(block)
	if errors.Is(err, storage.ErrDuplicateBlock) {
		h.logger.Debugf("IP %s already blocked", req.IPAddress)
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "duplicate": true})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store block")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *Handlers) UnblockIP(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := h.processor.Unblock(id, time.Now())
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "block not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to unblock")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *Handlers) GetRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": h.classifier.Rules(),
	})
}

// StreamAlerts pushes every stored alert to the WebSocket client as it
// arrives.
func (h *Handlers) StreamAlerts(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	sub := &storage.AlertSubscriber{
		ID:       uuid.NewString(),
		Channel:  make(chan model.Alert, 100),
		Severity: model.Severity(r.URL.Query().Get("severity")),
		LastSeen: time.Now(),
	}

	h.store.SubscribeAlerts(sub)
	defer h.store.UnsubscribeAlerts(sub)

	h.streamLoop(conn, func() (interface{}, bool) {
		a, ok := <-sub.Channel
		return a, ok
	})
}

// StreamStats pushes every traffic-stats snapshot to the WebSocket client.
func (h *Handlers) StreamStats(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	sub := &storage.StatsSubscriber{
		ID:       uuid.NewString(),
		Channel:  make(chan model.TrafficStats, 100),
		LastSeen: time.Now(),
	}

	h.store.SubscribeStats(sub)
	defer h.store.UnsubscribeStats(sub)

	h.streamLoop(conn, func() (interface{}, bool) {
		s, ok := <-sub.Channel
		return s, ok
	})
}

// streamLoop writes subscription events to the socket and keeps the
// connection alive with pings until either side drops.
func (h *Handlers) streamLoop(conn *websocket.Conn, next func() (interface{}, bool)) {
	done := make(chan struct{})

	// Read messages (for pong / close detection)
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Send ping to keep connection alive
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	events := make(chan interface{}, 1)
	go func() {
		defer close(events)
		for {
			event, ok := next()
			if !ok {
				return
			}
			select {
			case events <- event:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Errorf("WebSocket write error: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

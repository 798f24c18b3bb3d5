package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lifedash/lifedash/pkg/types"
)

const (
	maxBodyBytes    = 1 << 20 // 1 MB
	maxMessageRunes = 5000
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (gw *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"uptimeSeconds": int(time.Since(gw.startTime).Seconds()),
	})
}

func (gw *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	// Join the drain group before the shutdown check; a request admitted
	// between the check and the Add would otherwise escape the drain loop.
	gw.activeRequests.Add(1)
	defer gw.activeRequests.Done()

	if gw.shuttingDown() {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	if !gw.limiter.Allow(clientID(r)) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again in a minute")
		return
	}

	var req types.ChatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if utf8.RuneCountInString(req.Message) > maxMessageRunes {
		writeError(w, http.StatusBadRequest, "message exceeds 5000 characters")
		return
	}

	requestID := uuid.NewString()
	rlog := gw.log.WithRequestID(requestID)
	rlog.Info("chat request (%d chars, %d history turns)",
		utf8.RuneCountInString(req.Message), len(req.History))

	resp, err := gw.assistant.Chat(r.Context(), requestID, &req)
	if err != nil {
		rlog.Error("chat failed: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (gw *Gateway) handleUsageSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}

	summary, err := gw.recorder.Summarize(days)
	if err != nil {
		gw.log.Error("usage summary failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to read usage log")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (gw *Gateway) handleUsageRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := gw.recorder.Recent(limit)
	if err != nil {
		gw.log.Error("recent usage query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to read usage log")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

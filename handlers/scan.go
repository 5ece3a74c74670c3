package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/camden-git/dopplerindex/logging"
	"github.com/camden-git/dopplerindex/scan"
)

type ScanHandler struct {
	Runner *scan.Runner
	Log    *logging.Logger
}

// StartScan serves POST /api/scans. The body is optional: {"reset": true}.
func (h *ScanHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reset bool `json:"reset"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	// the scan outlives the request
	err := h.Runner.Start(context.WithoutCancel(r.Context()), req.Reset)
	if errors.Is(err, scan.ErrScanRunning) {
		WriteAPIError(w, http.StatusConflict, CodeScanRunning, "A scan is already running")
		return
	}
	if err != nil {
		h.Log.Error("error starting scan", zap.Error(err))
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to start scan")
		return
	}

	status, _ := h.Runner.Latest()
	writeJSON(w, http.StatusAccepted, status)
}

// LatestScan serves GET /api/scans/latest.
func (h *ScanHandler) LatestScan(w http.ResponseWriter, r *http.Request) {
	status, ok := h.Runner.Latest()
	if !ok {
		WriteAPIError(w, http.StatusNotFound, CodeNotFound, "No scan has run yet")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

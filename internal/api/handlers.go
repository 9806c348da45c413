package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yegors/co-los/internal/analysis"
	"github.com/yegors/co-los/internal/carriers"
	"github.com/yegors/co-los/internal/config"
	"github.com/yegors/co-los/internal/geo"
	"github.com/yegors/co-los/internal/snapshot"
	"github.com/yegors/co-los/pkg/logger"
)

const maxBodyBytes = 1 << 20

// SnapshotProvider supplies aircraft snapshots
type SnapshotProvider interface {
	Current(ctx context.Context) snapshot.Snapshot
	Refresh(ctx context.Context) (snapshot.Snapshot, error)
	Status() snapshot.Status
}

// CarrierRegistry lists carriers and updates their ranges
type CarrierRegistry interface {
	List() []carriers.Carrier
	Get(code string) (carriers.Carrier, error)
	SetRange(code string, rangeKm float64) (carriers.Carrier, error)
}

// Handler contains the API handlers
type Handler struct {
	snapshots SnapshotProvider
	carriers  CarrierRegistry
	analysis  *analysis.Service
	config    *config.Config
	logger    *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(snapshots SnapshotProvider, registry CarrierRegistry, analysisService *analysis.Service, config *config.Config, logger *logger.Logger) *Handler {
	return &Handler{
		snapshots: snapshots,
		carriers:  registry,
		analysis:  analysisService,
		config:    config,
		logger:    logger.Named("api-handler"),
	}
}

// GetAircraft returns aircraft of tracked carriers, optionally narrowed by
// ?carriers=DAL,UAL and ?near=lat,lon&radius_nm=50
func (h *Handler) GetAircraft(w http.ResponseWriter, r *http.Request) {
	filter := analysis.AircraftFilter{}

	if raw := r.URL.Query().Get("carriers"); raw != "" {
		for _, code := range strings.Split(raw, ",") {
			if code = strings.TrimSpace(code); code != "" {
				filter.Carriers = append(filter.Carriers, code)
			}
		}
	}

	if near := r.URL.Query().Get("near"); near != "" {
		lat, lon, err := geo.ParseCoordinates(near)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		radius, err := strconv.ParseFloat(r.URL.Query().Get("radius_nm"), 64)
		if err != nil || !carriers.ValidRange(radius) {
			writeError(w, http.StatusBadRequest, "radius_nm must be a positive number")
			return
		}

		filter.Latitude, filter.Longitude, filter.RadiusNM = lat, lon, radius
	}

	snap := h.snapshots.Current(r.Context())
	WriteJSON(w, http.StatusOK, h.analysis.Aircraft(snap, filter))
}

// GetCarriers returns the carrier table keyed by code
func (h *Handler) GetCarriers(w http.ResponseWriter, r *http.Request) {
	list := h.carriers.List()

	response := make(map[string]carriers.Carrier, len(list))
	for _, c := range list {
		response[c.Code] = c
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetCarrier returns one carrier by code
func (h *Handler) GetCarrier(w http.ResponseWriter, r *http.Request) {
	carrier, err := h.carriers.Get(chi.URLParam(r, "code"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, carrier)
}

// UpdateCarrierRange changes the default range of one carrier
func (h *Handler) UpdateCarrierRange(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req struct {
		DefaultRangeKm *float64 `json:"default_range_km"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.DefaultRangeKm == nil {
		writeError(w, http.StatusBadRequest, "default_range_km is required")
		return
	}

	carrier, err := h.carriers.SetRange(code, *req.DefaultRangeKm)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, carrier)
}

// CalculateDistances returns pairwise distances among the selected carriers
func (h *Handler) CalculateDistances(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAnalysisRequest(w, r)
	if !ok {
		return
	}

	result, err := h.analysis.Distances(h.snapshots.Current(r.Context()), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// CalculateCommunication returns direct and relayed pair counts
func (h *Handler) CalculateCommunication(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAnalysisRequest(w, r)
	if !ok {
		return
	}

	result, err := h.analysis.Communication(h.snapshots.Current(r.Context()), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// GetGraph returns the communication graph as nodes and edges
func (h *Handler) GetGraph(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAnalysisRequest(w, r)
	if !ok {
		return
	}

	result, err := h.analysis.Graph(h.snapshots.Current(r.Context()), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// RefreshSnapshot forces a feed refresh
func (h *Handler) RefreshSnapshot(w http.ResponseWriter, r *http.Request) {
	if _, err := h.snapshots.Refresh(r.Context()); err != nil {
		h.logger.Warn("Forced refresh failed",
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err),
		)
		writeError(w, http.StatusBadGateway, "Failed to refresh aircraft data: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, h.healthResponse())
}

// GetHealth returns the feed status
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.healthResponse())
}

// GetConfig returns the public configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	publicConfig := map[string]interface{}{
		"snapshot": map[string]interface{}{
			"refresh_interval_seconds": h.config.Snapshot.RefreshIntervalSeconds,
			"background_refresh":       h.config.Snapshot.BackgroundRefresh,
		},
		"analysis": map[string]interface{}{
			"default_range_km":     h.config.Analysis.DefaultRangeKm,
			"max_distance_records": h.config.Analysis.MaxDistanceRecords,
			"distance_bins_km":     h.config.Analysis.DistanceBinsKm,
		},
	}

	WriteJSON(w, http.StatusOK, publicConfig)
}

type healthResponse struct {
	Status        string     `json:"status"`
	LastSuccess   *time.Time `json:"last_success"`
	LastAttempt   *time.Time `json:"last_attempt"`
	LastError     string     `json:"last_error,omitempty"`
	AircraftCount int        `json:"aircraft_count"`
}

func (h *Handler) healthResponse() healthResponse {
	status := h.snapshots.Status()

	response := healthResponse{
		Status:        "ok",
		LastSuccess:   timePtr(status.LastSuccess),
		LastAttempt:   timePtr(status.LastAttempt),
		LastError:     status.LastError,
		AircraftCount: status.AircraftCount,
	}
	switch {
	case status.LastSuccess.IsZero():
		response.Status = "unavailable"
	case !status.Healthy:
		response.Status = "degraded"
	}
	return response
}

// decodeAnalysisRequest reads the request body. An empty body is treated
// as a request with no carriers.
func (h *Handler) decodeAnalysisRequest(w http.ResponseWriter, r *http.Request) (analysis.Request, bool) {
	var req analysis.Request
	if err := decodeBody(w, r, &req); err != nil {
		h.logger.Debug("Failed to parse analysis request", logger.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return analysis.Request{}, false
	}
	return req, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// handleError maps service errors to status codes
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, analysis.ErrNoCarriers),
		errors.Is(err, analysis.ErrInvalidRange),
		errors.Is(err, carriers.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, carriers.ErrUnknownCarrier):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("Request failed",
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

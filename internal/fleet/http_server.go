package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/OdoTrack/OdoTrack/internal/common/errs"
	"github.com/OdoTrack/OdoTrack/internal/common/logger"
)

// HTTPServer 车队台账的 HTTP JSON API。
type HTTPServer struct {
	svc *Service
	log logger.Logger
}

func NewHTTPServer(svc *Service, log logger.Logger) *HTTPServer {
	return &HTTPServer{svc: svc, log: log}
}

// Handler 返回路由好的 handler，由统一的 server 模板套中间件。
func (h *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("POST /v1/vehicles", h.handleCreateVehicle)
	mux.HandleFunc("GET /v1/vehicles", h.handleListVehicles)
	mux.HandleFunc("GET /v1/vehicles/{id}", h.handleGetVehicle)
	mux.HandleFunc("POST /v1/vehicles/{id}/drive", h.handleDrive)
	mux.HandleFunc("POST /v1/vehicles/{id}/trips", h.handleStartTrip)
	mux.HandleFunc("GET /v1/vehicles/{id}/trips/{tripID}", h.handleGetTrip)
	return mux
}

type vehicleView struct {
	ID        string  `json:"id"`
	Make      string  `json:"make"`
	Model     string  `json:"model"`
	Odometer  float64 `json:"odometer"`
	CreatedAt int64   `json:"created_at"`
}

type tripView struct {
	ID        string   `json:"id"`
	VehicleID string   `json:"vehicle_id"`
	Status    string   `json:"status"`
	ETAMillis int64    `json:"eta_ms"`
	StartedAt int64    `json:"started_at"` // 发起时刻（台账时钟）
	Distance  *float64 `json:"distance,omitempty"` // 完成后才有值
	CreatedAt int64    `json:"created_at"`
}

func toVehicleView(rec *VehicleRecord) vehicleView {
	return vehicleView{
		ID:        rec.ID,
		Make:      rec.Make,
		Model:     rec.Model,
		Odometer:  rec.Ledger.Odometer(),
		CreatedAt: rec.CreatedAt.Unix(),
	}
}

func toTripView(rec *TripRecord) tripView {
	v := tripView{
		ID:        rec.ID,
		VehicleID: rec.VehicleID,
		Status:    string(rec.Trip.Status()),
		ETAMillis: rec.Trip.ETA().Milliseconds(),
		StartedAt: rec.Trip.StartedAt().Unix(),
		CreatedAt: rec.CreatedAt.Unix(),
	}
	if d, ok := rec.Trip.Distance(); ok {
		v.Distance = &d
	}
	return v
}

func (h *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (h *HTTPServer) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Make  string `json:"make"`
		Model string `json:"model"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.svc.CreateVehicle(r.Context(), CreateVehicleInput{Make: req.Make, Model: req.Model})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toVehicleView(rec))
}

func (h *HTTPServer) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	page := intQuery(r, "page", 1)
	size := intQuery(r, "page_size", 20)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 20
	}

	recs, total, err := h.svc.ListVehicles(r.Context(), (page-1)*size, size)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]vehicleView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toVehicleView(rec))
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"vehicles": out,
		"total":    total,
	})
}

func (h *HTTPServer) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetVehicle(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toVehicleView(rec))
}

func (h *HTTPServer) handleDrive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Legs []float64 `json:"legs"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	distance, odometer, err := h.svc.Drive(r.Context(), r.PathValue("id"), req.Legs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]float64{
		"distance": distance,
		"odometer": odometer,
	})
}

func (h *HTTPServer) handleStartTrip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64   `json:"speed"`
		Legs  []float64 `json:"legs"`
		// Wait=true 时在本请求内等待行程完成（以请求 ctx 为外部超时）。
		Wait bool `json:"wait"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.svc.StartTrip(r.Context(), r.PathValue("id"), req.Speed, req.Legs)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if req.Wait {
		if _, err := rec.Trip.Wait(r.Context()); err != nil {
			h.writeError(w, errs.Wrap(errs.KindInternal, "fleet.StartTrip", err))
			return
		}
		h.writeJSON(w, http.StatusOK, toTripView(rec))
		return
	}
	h.writeJSON(w, http.StatusAccepted, toTripView(rec))
}

func (h *HTTPServer) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetTrip(r.Context(), r.PathValue("id"), r.PathValue("tripID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toTripView(rec))
}

func (h *HTTPServer) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, errs.Wrap(errs.KindInvalidArgument, "fleet.http", err))
		return false
	}
	return true
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && h.log != nil {
		h.log.Warnf("write response: %v", err)
	}
}

func (h *HTTPServer) writeError(w http.ResponseWriter, err error) {
	status := errs.HTTPStatus(err)
	// 等待行程时请求 ctx 先到期，按网关超时返回
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	h.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  errs.KindOf(err).String(),
	})
}

func intQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

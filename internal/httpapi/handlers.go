// Package httpapi exposes the staging controller's operations over HTTP.
// Status codes follow the operation errors: unknown units are 404,
// emergency/availability conflicts 409, relay write failures 502 and
// every validation failure 400.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/akhgr1-design/chillerd/internal/metrics"
	"github.com/akhgr1-design/chillerd/internal/plant"
	"github.com/akhgr1-design/chillerd/internal/staging"
)

// Reloader re-reads the plant properties file on demand.
type Reloader interface {
	Reload() error
}

type Server struct {
	ctl *staging.Controller
	met *metrics.Metrics
	rel Reloader
	log *slog.Logger
}

// NewServer wires the controller into the HTTP layer. met and rel may be
// nil; the metrics route and reload endpoint degrade accordingly.
func NewServer(ctl *staging.Controller, met *metrics.Metrics, rel Reloader, log *slog.Logger) *Server {
	return &Server{ctl: ctl, met: met, rel: rel, log: log.With(slog.String("component", "httpapi"))}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Status())
}

func (s *Server) units(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Units())
}

func (s *Server) unitByIndex(w http.ResponseWriter, r *http.Request) {
	k, index, ok := s.unitVars(w, r)
	if !ok {
		return
	}
	if k == plant.KindCondenser {
		cu, err := s.ctl.CondenserStatusOf(index)
		if err != nil {
			s.writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cu)
		return
	}
	u, err := s.ctl.UnitStatusOf(k, index)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) setUnitMode(w http.ResponseWriter, r *http.Request) {
	k, index, ok := s.unitVars(w, r)
	if !ok {
		return
	}
	var req struct {
		Mode string `json:"mode"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	m, err := plant.ParseMode(req.Mode)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	if err := s.ctl.SetUnitMode(k, index, m); err != nil {
		s.writeOpError(w, err)
		return
	}
	s.log.Info("unit mode changed", "kind", k.String(), "unit", index, "mode", m.String())
	if k == plant.KindCondenser {
		cu, _ := s.ctl.CondenserStatusOf(index)
		writeJSON(w, http.StatusOK, cu)
		return
	}
	u, _ := s.ctl.UnitStatusOf(k, index)
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) setCapacity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CapacityPercent *float64 `json:"capacityPercent"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.CapacityPercent == nil {
		writeError(w, http.StatusBadRequest, "capacityPercent is required")
		return
	}
	applied := s.ctl.UpdateCapacity(*req.CapacityPercent)
	s.log.Info("capacity demand set", "requested", *req.CapacityPercent, "applied", applied)
	writeJSON(w, http.StatusOK, s.ctl.Status())
}

func (s *Server) setAmbient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemperatureC *float64 `json:"temperatureC"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.TemperatureC == nil {
		writeError(w, http.StatusBadRequest, "temperatureC is required")
		return
	}
	if err := s.ctl.UpdateAmbient(*req.TemperatureC); err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctl.Status())
}

func (s *Server) emergencyStop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = "operator request"
	}
	s.ctl.EmergencyStop(req.Reason)
	writeJSON(w, http.StatusOK, s.ctl.Status())
}

func (s *Server) resumeStaging(w http.ResponseWriter, _ *http.Request) {
	s.ctl.ResumeAutoStaging()
	writeJSON(w, http.StatusOK, s.ctl.Status())
}

func (s *Server) setAlgorithm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Algorithm string `json:"algorithm"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	a, err := staging.ParseAlgorithm(req.Algorithm)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	s.ctl.SetAlgorithm(a)
	writeJSON(w, http.StatusOK, s.ctl.Status())
}

func (s *Server) setStrategy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Strategy string `json:"strategy"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	st, err := staging.ParseStrategy(req.Strategy)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	s.ctl.SetStrategy(st)
	writeJSON(w, http.StatusOK, s.ctl.Status())
}

func (s *Server) setTier(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxTier *int `json:"maxTier"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.MaxTier == nil {
		writeError(w, http.StatusBadRequest, "maxTier is required")
		return
	}
	if err := s.ctl.SetMaxTier(*req.MaxTier); err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctl.Status())
}

func (s *Server) postPerformance(w http.ResponseWriter, r *http.Request) {
	index, ok := s.indexVar(w, r)
	if !ok {
		return
	}
	var req struct {
		EfficiencyRating  *float64 `json:"efficiencyRating"`
		PowerDrawKW       float64  `json:"powerDrawKw"`
		CoolingCapacityKW float64  `json:"coolingCapacityKw"`
		TemperatureDeltaC float64  `json:"temperatureDeltaC"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.EfficiencyRating == nil {
		writeError(w, http.StatusBadRequest, "efficiencyRating is required")
		return
	}
	sample := plant.PerformanceSample{
		EfficiencyRating:  *req.EfficiencyRating,
		PowerDrawKW:       req.PowerDrawKW,
		CoolingCapacityKW: req.CoolingCapacityKW,
		TemperatureDeltaC: req.TemperatureDeltaC,
	}
	if err := s.ctl.UpdatePerformance(index, sample); err != nil {
		s.writeOpError(w, err)
		return
	}
	cu, _ := s.ctl.CondenserStatusOf(index)
	writeJSON(w, http.StatusOK, cu)
}

func (s *Server) setWeights(w http.ResponseWriter, r *http.Request) {
	index, ok := s.indexVar(w, r)
	if !ok {
		return
	}
	var req struct {
		Runtime     float64 `json:"runtime"`
		Performance float64 `json:"performance"`
		Maintenance float64 `json:"maintenance"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	weights := plant.ScoreWeights{Runtime: req.Runtime, Performance: req.Performance, Maintenance: req.Maintenance}
	if err := s.ctl.SetCondenserWeights(index, weights); err != nil {
		s.writeOpError(w, err)
		return
	}
	cu, _ := s.ctl.CondenserStatusOf(index)
	writeJSON(w, http.StatusOK, cu)
}

func (s *Server) startMaintenance(w http.ResponseWriter, r *http.Request) {
	s.maintenanceOp(w, r, s.ctl.StartMaintenance)
}

func (s *Server) completeMaintenance(w http.ResponseWriter, r *http.Request) {
	s.maintenanceOp(w, r, s.ctl.CompleteMaintenance)
}

func (s *Server) maintenanceOp(w http.ResponseWriter, r *http.Request, op func(int, string) error) {
	index, ok := s.indexVar(w, r)
	if !ok {
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	if err := op(index, req.Notes); err != nil {
		s.writeOpError(w, err)
		return
	}
	cu, _ := s.ctl.CondenserStatusOf(index)
	writeJSON(w, http.StatusOK, cu)
}

func (s *Server) reloadConfig(w http.ResponseWriter, _ *http.Request) {
	if s.rel == nil {
		writeError(w, http.StatusServiceUnavailable, "no reloadable plant configuration")
		return
	}
	if err := s.rel.Reload(); err != nil {
		s.log.Warn("config reload failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("plant configuration reloaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (s *Server) unitVars(w http.ResponseWriter, r *http.Request) (plant.Kind, int, bool) {
	vars := mux.Vars(r)
	k, err := plant.ParseKind(vars["kind"])
	if err != nil {
		s.writeOpError(w, err)
		return 0, 0, false
	}
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid unit index")
		return 0, 0, false
	}
	return k, index, true
}

func (s *Server) indexVar(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid unit index")
		return 0, false
	}
	return index, true
}

// maxBodyBytes bounds operation payloads; every request body here is a
// handful of JSON fields.
const maxBodyBytes = 1 << 20

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid body")
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func (s *Server) writeOpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, plant.ErrUnknownUnit):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, staging.ErrEmergencyActive), errors.Is(err, staging.ErrUnitUnavailable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, staging.ErrRelayWrite):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, plant.ErrUnknownKind), errors.Is(err, plant.ErrUnknownMode),
		errors.Is(err, staging.ErrUnknownAlgorithm), errors.Is(err, staging.ErrUnknownStrategy),
		errors.Is(err, staging.ErrTierRange), errors.Is(err, staging.ErrPerformanceRange),
		errors.Is(err, staging.ErrAmbientRange):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

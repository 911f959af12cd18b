// Package api is the HTTP surface of the bridge: frame ingestion and
// delivery, plus the pass-through endpoints connecting frontend, agents and
// the QNX board.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/plantbridge/backend/internal/config"
	"github.com/plantbridge/backend/internal/frame"
	"github.com/plantbridge/backend/internal/metrics"
	"github.com/plantbridge/backend/internal/qnx"
	"github.com/plantbridge/backend/internal/servo"
	"github.com/plantbridge/backend/internal/weather"
)

// Server wires the HTTP handlers to the cache, the relay state and the
// outbound clients.
type Server struct {
	cfg     config.Config
	log     zerolog.Logger
	cache   *frame.Cache
	metrics *metrics.Metrics
	weather *weather.Client
	qnx     *qnx.Client
	state   *state

	bucket servo.BucketSpec
	servo  servo.ServoSpec
}

func NewServer(cfg config.Config, log zerolog.Logger, cache *frame.Cache, m *metrics.Metrics,
	weatherClient *weather.Client, qnxClient *qnx.Client) *Server {
	return &Server{
		cfg:     cfg,
		log:     log.With().Str("component", "api").Logger(),
		cache:   cache,
		metrics: m,
		weather: weatherClient,
		qnx:     qnxClient,
		state:   &state{},
		bucket:  servo.BucketSpec{DiameterCm: cfg.BucketDiameterCm, HeightCm: cfg.BucketHeightCm},
		servo:   servo.ServoSpec{MinAngleDeg: cfg.ServoMinAngleDeg, MaxAngleDeg: cfg.ServoMaxAngleDeg},
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/location", s.handleSetLocation).Methods(http.MethodPost)
	r.HandleFunc("/location", s.handleGetLocation).Methods(http.MethodGet)
	r.HandleFunc("/weather", s.handleWeather).Methods(http.MethodGet)

	r.HandleFunc("/ingest/telemetry", s.handleIngestTelemetry).Methods(http.MethodPost)
	r.HandleFunc("/plant/latest", s.handlePlantLatest).Methods(http.MethodGet)

	r.HandleFunc("/ingest/decision", s.handleIngestDecision).Methods(http.MethodPost)
	r.HandleFunc("/decision/latest", s.handleDecisionLatest).Methods(http.MethodGet)

	r.HandleFunc("/ingest/frame", s.handleIngestFrame).Methods(http.MethodPost)
	r.HandleFunc("/video/latest.jpg", s.handleLatestJPEG).Methods(http.MethodGet)
	r.HandleFunc("/video/stream.mjpeg", s.handleStream).Methods(http.MethodGet)

	r.HandleFunc("/qnx/command/water", s.handleWaterCommand).Methods(http.MethodPost)
	r.HandleFunc("/qnx/last_command", s.handleLastCommand).Methods(http.MethodGet)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"ok": true, "time": unixNow()})
}

type locationIn struct {
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Source string   `json:"source"`
	Label  *string  `json:"label"`
}

func (s *Server) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	var in locationIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "invalid body"}, http.StatusBadRequest)
		return
	}
	if in.Lat == nil || in.Lon == nil {
		writeJSONWithStatus(w, map[string]any{"error": "lat and lon are required"}, http.StatusBadRequest)
		return
	}
	if in.Source == "" {
		in.Source = "browser_geolocation"
	}

	loc := &Location{Lat: *in.Lat, Lon: *in.Lon, Source: in.Source, Label: in.Label}
	s.state.setLocation(loc)
	writeJSON(w, map[string]any{"status": "ok", "location": loc})
}

func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"location": s.state.getLocation()})
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	loc := s.state.getLocation()
	if loc == nil {
		writeJSONWithStatus(w, map[string]any{
			"error":   "no_location",
			"message": "POST /location with {lat, lon} first.",
		}, http.StatusBadRequest)
		return
	}

	snap, err := s.weather.Snapshot(r.Context(), loc.Lat, loc.Lon)
	if err != nil {
		s.log.Warn().Err(err).Msg("weather fetch failed")
		writeJSONWithStatus(w, map[string]any{"error": "weather_unavailable"}, http.StatusBadGateway)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleIngestTelemetry(w http.ResponseWriter, r *http.Request) {
	var in Telemetry
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "invalid body"}, http.StatusBadRequest)
		return
	}
	if in.PlantID == "" || in.TS == "" || in.Sensors == nil {
		writeJSONWithStatus(w, map[string]any{"error": "plant_id, ts and sensors are required"}, http.StatusBadRequest)
		return
	}
	s.state.setTelemetry(&in)
	writeJSON(w, map[string]any{"status": "ok", "stored": true})
}

func (s *Server) handlePlantLatest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"telemetry": s.state.getTelemetry()})
}

func (s *Server) handleIngestDecision(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "invalid body"}, http.StatusBadRequest)
		return
	}
	s.state.setDecision(payload)
	writeJSON(w, map[string]any{"status": "ok", "stored": true, "ts_server": unixNow()})
}

func (s *Server) handleDecisionLatest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"decision": s.state.getDecision()})
}

// handleIngestFrame accepts a complete JPEG either as a multipart "file"
// field or as the raw request body, and installs it verbatim as the latest
// frame. No validation: a broken image just shows up broken for viewers.
func (s *Server) handleIngestFrame(w http.ResponseWriter, r *http.Request) {
	data, err := frameBody(r)
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusBadRequest)
		return
	}

	s.cache.Set(&frame.Encoded{JPEG: data, CapturedAt: time.Now()})
	if s.metrics != nil {
		s.metrics.PushFrames.Add(1)
	}
	writeJSON(w, map[string]any{"status": "ok", "bytes": len(data)})
}

func frameBody(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing file field")
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("empty frame")
		}
		return data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	return data, nil
}

func (s *Server) handleLatestJPEG(w http.ResponseWriter, r *http.Request) {
	f := s.cache.Get()
	if f == nil {
		http.Error(w, "no frame cached", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(f.JPEG)))
	_, _ = w.Write(f.JPEG)
}

type waterIn struct {
	PlantID string   `json:"plant_id"`
	WaterMl *float64 `json:"water_ml"`
	Reason  *string  `json:"reason"`
	Source  string   `json:"source"`
}

func (s *Server) handleWaterCommand(w http.ResponseWriter, r *http.Request) {
	var in waterIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "invalid body"}, http.StatusBadRequest)
		return
	}
	if in.PlantID == "" || in.WaterMl == nil {
		writeJSONWithStatus(w, map[string]any{"error": "plant_id and water_ml are required"}, http.StatusBadRequest)
		return
	}
	if in.Source == "" {
		in.Source = "sam"
	}

	mapping := servo.WaterToAngle(*in.WaterMl, s.bucket, s.servo)
	cmd := &WaterCommand{
		PlantID:          in.PlantID,
		WaterMl:          mapping.ClampedWaterMl,
		ServoAngleDeg:    mapping.ServoAngleDeg,
		BucketCapacityMl: mapping.BucketCapacityMl,
		FillFraction:     mapping.FillFraction,
		Reason:           in.Reason,
		Source:           in.Source,
		TSServer:         unixNow(),
	}
	s.state.setLastCommand(cmd)

	result, err := s.qnx.SendWaterCommand(r.Context(), cmd)
	if err != nil {
		s.log.Warn().Err(err).Str("plant_id", cmd.PlantID).Msg("qnx forward failed")
		writeJSONWithStatus(w, map[string]any{
			"status":  "error",
			"command": cmd,
			"error":   "qnx_unavailable",
		}, http.StatusBadGateway)
		return
	}

	writeJSON(w, map[string]any{"status": "ok", "command": cmd, "qnx": result})
}

func (s *Server) handleLastCommand(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"last_water_command": s.state.getLastCommand()})
}

func unixNow() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":%q}`, err.Error())
	}
}

package api

import "sync"

// Location is the plant's position as reported by the frontend.
type Location struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Source string  `json:"source"`
	Label  *string `json:"label"`
}

// Telemetry is the latest sensor report from the plant agent.
type Telemetry struct {
	PlantID string         `json:"plant_id"`
	TS      string         `json:"ts"`
	Sensors map[string]any `json:"sensors"`
	Vision  map[string]any `json:"vision"`
}

// WaterCommand is a resolved watering command, as stored and as forwarded to
// the QNX board.
type WaterCommand struct {
	PlantID          string  `json:"plant_id"`
	WaterMl          float64 `json:"water_ml"`
	ServoAngleDeg    float64 `json:"servo_angle_deg"`
	BucketCapacityMl float64 `json:"bucket_capacity_ml"`
	FillFraction     float64 `json:"fill_fraction"`
	Reason           *string `json:"reason"`
	Source           string  `json:"source"`
	TSServer         float64 `json:"ts_server"`
}

// state holds the non-frame pass-through values the endpoints relay between
// frontend, agents and hardware. Same lifetime as the frame cache.
type state struct {
	mu          sync.RWMutex
	location    *Location
	telemetry   *Telemetry
	decision    map[string]any
	lastCommand *WaterCommand
}

func (s *state) setLocation(loc *Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = loc
}

func (s *state) getLocation() *Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.location
}

func (s *state) setTelemetry(t *Telemetry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = t
}

func (s *state) getTelemetry() *Telemetry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.telemetry
}

func (s *state) setDecision(d map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decision = d
}

func (s *state) getDecision() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decision
}

func (s *state) setLastCommand(c *WaterCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCommand = c
}

func (s *state) getLastCommand() *WaterCommand {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCommand
}

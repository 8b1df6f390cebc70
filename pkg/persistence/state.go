package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sousvide-ble/nano-go/pkg/sensor"
	"github.com/sousvide-ble/nano-go/pkg/transport"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// ClientState contains the runtime state of a cooker client.
type ClientState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Device is the remembered cooker.
	Device *DeviceRecord `json:"device,omitempty"`

	// Snapshot is the last sensor reading.
	Snapshot *SnapshotRecord `json:"snapshot,omitempty"`

	// PollInterval is the last configured poll interval.
	PollInterval time.Duration `json:"poll_interval,omitempty"`
}

// DeviceRecord identifies a cooker.
type DeviceRecord struct {
	Address      string    `json:"address"`
	Name         string    `json:"name,omitempty"`
	ServiceUUIDs []string  `json:"service_uuids,omitempty"`
	ConnectedAt  time.Time `json:"connected_at,omitempty"`
}

// NewDeviceRecord converts dev.
func NewDeviceRecord(dev transport.Device, connectedAt time.Time) *DeviceRecord {
	return &DeviceRecord{
		Address:      dev.Address,
		Name:         dev.Name,
		ServiceUUIDs: append([]string(nil), dev.ServiceUUIDs...),
		ConnectedAt:  connectedAt,
	}
}

// Device converts the record back.
func (r *DeviceRecord) Device() transport.Device {
	return transport.Device{
		Address:      r.Address,
		Name:         r.Name,
		ServiceUUIDs: append([]string(nil), r.ServiceUUIDs...),
	}
}

// SnapshotRecord is a sensor snapshot with the time it was taken.
type SnapshotRecord struct {
	TakenAt      time.Time `json:"taken_at"`
	WaterTemp    float64   `json:"water_temp"`
	HeaterTemp   float64   `json:"heater_temp"`
	TriacTemp    float64   `json:"triac_temp"`
	InternalTemp float64   `json:"internal_temp"`
	Unit         string    `json:"unit"`
	WaterLow     bool      `json:"water_low,omitempty"`
	WaterLeak    bool      `json:"water_leak,omitempty"`
	MotorSpeed   int32     `json:"motor_speed"`
}

// NewSnapshotRecord converts v.
func NewSnapshotRecord(v sensor.Values, takenAt time.Time) *SnapshotRecord {
	return &SnapshotRecord{
		TakenAt:      takenAt,
		WaterTemp:    v.WaterTemp.Value,
		HeaterTemp:   v.HeaterTemp.Value,
		TriacTemp:    v.TriacTemp.Value,
		InternalTemp: v.InternalTemp.Value,
		Unit:         v.WaterTemp.Unit,
		WaterLow:     v.WaterLow,
		WaterLeak:    v.WaterLeak,
		MotorSpeed:   v.MotorSpeed,
	}
}

// Values converts the record back. All temperatures share the recorded
// unit.
func (r *SnapshotRecord) Values() sensor.Values {
	temp := func(v float64) sensor.Temperature { return sensor.Temperature{Value: v, Unit: r.Unit} }
	return sensor.Values{
		WaterTemp:    temp(r.WaterTemp),
		HeaterTemp:   temp(r.HeaterTemp),
		TriacTemp:    temp(r.TriacTemp),
		InternalTemp: temp(r.InternalTemp),
		WaterLow:     r.WaterLow,
		WaterLeak:    r.WaterLeak,
		MotorSpeed:   r.MotorSpeed,
	}
}

// StateStore manages persistence of client state to a JSON file.
type StateStore struct {
	mu   sync.Mutex
	path string
}

// NewStateStore creates a new state store.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the state file path.
func (s *StateStore) Path() string {
	return s.path
}

// Save persists the state to disk.
func (s *StateStore) Save(state *ClientState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(state)
}

// Load reads the state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *StateStore) Load() (*ClientState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Update loads the state, applies fn and saves the result. A missing file
// starts from an empty state.
func (s *StateStore) Update(fn func(*ClientState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadLocked()
	if err != nil {
		return err
	}
	if state == nil {
		state = &ClientState{}
	}
	fn(state)
	state.SavedAt = time.Time{}
	return s.saveLocked(state)
}

// Clear removes the state file.
func (s *StateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *StateStore) saveLocked(state *ClientState) error {
	// Ensure parent directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	// The rename replaces the old file atomically.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *StateStore) loadLocked() (*ClientState, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &ClientState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}

	return state, nil
}

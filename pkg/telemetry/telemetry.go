// Package telemetry records vehicle state changes.
//
// A Sink receives one Event per change. The Recorder stamps events with a
// session id and time and fans them out to every configured sink: a
// rotating CSV file, an MQTT topic, the application log.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-rover/pkg/actuation"
)

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("telemetry: sink closed")

// Event is one recorded state.
type Event struct {
	Time    time.Time              `json:"time"`
	Session string                 `json:"session"`
	Subject string                 `json:"subject"`
	Mode    string                 `json:"mode,omitempty"`
	State   actuation.VehicleState `json:"state"`
}

// Sink consumes events.
type Sink interface {
	Emit(ctx context.Context, e Event) error
	Close() error
}

// Config selects and tunes the sinks.
type Config struct {
	CSVPath       string `yaml:"csv_path" json:"csv_path"` // "" disables CSV
	CSVMaxSizeMB  int    `yaml:"csv_max_size_mb" json:"csv_max_size_mb"`
	CSVMaxBackups int    `yaml:"csv_max_backups" json:"csv_max_backups"`

	MQTTBroker   string        `yaml:"mqtt_broker" json:"mqtt_broker"` // "" disables MQTT
	MQTTTopic    string        `yaml:"mqtt_topic" json:"mqtt_topic"`
	MQTTClientID string        `yaml:"mqtt_client_id" json:"mqtt_client_id"`
	MQTTQoS      byte          `yaml:"mqtt_qos" json:"mqtt_qos"`
	MQTTTimeout  time.Duration `yaml:"mqtt_timeout" json:"mqtt_timeout"`

	LogEvents bool `yaml:"log_events" json:"log_events"`
}

// DefaultConfig writes CSV to log/vehicle_state.csv, rotated at 10 MB.
func DefaultConfig() Config {
	return Config{
		CSVPath:       "log/vehicle_state.csv",
		CSVMaxSizeMB:  10,
		CSVMaxBackups: 1,
		MQTTTopic:     "rover/state",
		MQTTClientID:  "go-rover",
		MQTTTimeout:   2 * time.Second,
		LogEvents:     true,
	}
}

// Recorder stamps events and fans them out to its sinks.
type Recorder struct {
	session string
	sinks   []Sink
	now     func() time.Time
}

var _ Sink = (*Recorder)(nil)

// NewRecorder creates a recorder with a fresh session id.
func NewRecorder(sinks ...Sink) *Recorder {
	return &Recorder{
		session: uuid.NewString(),
		sinks:   sinks,
		now:     time.Now,
	}
}

// Session returns the id stamped on every event.
func (r *Recorder) Session() string {
	return r.session
}

// Emit forwards e to every sink. Every sink is tried; failures are joined.
func (r *Recorder) Emit(ctx context.Context, e Event) error {
	if e.Time.IsZero() {
		e.Time = r.now()
	}
	if e.Session == "" {
		e.Session = r.session
	}

	var errs []error
	for _, s := range r.sinks {
		if err := s.Emit(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (r *Recorder) Close() error {
	var errs []error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

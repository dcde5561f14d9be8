package telemetry

import "log/slog"

// FromConfig builds a Recorder with the sinks cfg enables.
func FromConfig(cfg Config, logger *slog.Logger) (*Recorder, error) {
	var sinks []Sink

	if cfg.LogEvents {
		sinks = append(sinks, NewLogSink(logger))
	}
	if cfg.CSVPath != "" {
		sinks = append(sinks, NewCSVSink(cfg.CSVPath, cfg.CSVMaxSizeMB, cfg.CSVMaxBackups))
	}
	if cfg.MQTTBroker != "" {
		m, err := DialMQTT(cfg)
		if err != nil {
			for _, s := range sinks {
				s.Close()
			}
			return nil, err
		}
		sinks = append(sinks, m)
	}

	return NewRecorder(sinks...), nil
}

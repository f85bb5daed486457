package monitoring

import (
	"github.com/rs/zerolog/log"
)

// Alert reports a condition needing operator attention. Alerts are logged
// until an alerting backend is wired.
func Alert(message string, labels map[string]string) {
	fields := make(map[string]any, len(labels))
	for k, v := range labels {
		fields[k] = v
	}
	log.Error().
		Str("alert", message).
		Fields(fields).
		Msg("ALERT: directory issue detected")
}

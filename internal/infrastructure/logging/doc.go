// Package logging builds the bridge's slog loggers.
//
// The daemon logs JSON to stdout by default so a supervisor (systemd,
// docker) can ship it; the CLI logs text to stderr. Every entry carries
// service=eq3bridge and the build version.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Components get their own attribute with With:
//
//	log.With("component", "mqtt").Warn("connection lost", "error", err)
//
// Raw BLE payloads are logged as hex at debug level only. MQTT and InfluxDB
// credentials are never logged; config types redact them in String().
package logging

// Package config loads the bridge daemon's YAML configuration.
//
// Values come from three layers, later ones winning: built-in defaults,
// the YAML file, then EQ3BRIDGE_* environment variables. The MQTT
// password and InfluxDB token are normally supplied through the
// environment so the file can stay world-readable.
//
// Thermostats are not described here. protocols.eq3.config_file points at
// the device file read by the eq3 package.
package config

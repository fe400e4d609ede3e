// Package influxdb writes thermostat telemetry to InfluxDB v2.
//
// Two measurements are produced:
//
//	thermostat  tags device_id, mode, address
//	            fields target_c, valve_percent, low_battery, window_open, locked, boost
//	eq3_link    tags device_id, backend
//	            fields connected, transactions, timeouts, malformed_payloads, ...
//
// Points go through the client library's batching write API, so the write
// methods never block on the network. Batch failures are reported to the
// callback registered with SetOnError.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.SetOnError(func(err error) { log.Error("influx write", "error", err) })
//
// Telemetry is optional: Connect returns ErrDisabled when the section is
// switched off and the bridge runs without a metrics writer.
package influxdb

// Package history keeps a local audit trail of thermostat state changes in
// SQLite.
//
// Every state the bridge publishes is also recorded here with its source
// (a poll, a command, or a manual CLI read), so the recent past of a
// thermostat can be answered from disk even when InfluxDB is disabled or
// unreachable. Old rows are removed by PruneHistory.
package history

// Package eq3 implements the eQ-3 Bluetooth Smart radiator thermostat bridge.
//
// This package speaks the thermostat's proprietary GATT byte protocol. It
// builds command payloads, decodes the notifications the device sends back,
// and keeps a local mirror of the device state derived from them.
//
// # Architecture
//
// The bridge operates as a translator between MQTT and the thermostat:
//
//	┌─────────────────┐          ┌─────────────────┐   Link (BLE,
//	│   Gray Logic    │   MQTT   │   eQ-3 Bridge   │   serial or
//	│      Core       │◄────────►│   (this pkg)    │◄──websocket)──► Thermostat
//	└─────────────────┘          └─────────────────┘
//
// Inside the bridge every device is an independent session:
//
//	Device ──► commands.go (payload) ──► Link.Write(0x411)
//	                                          │
//	Thermostat.HandleNotification ◄── sink ◄──┘ notification (0x421)
//
// # Key Responsibilities
//
//   - Encode and decode the wire records (status, schedule, device id)
//   - Build the command payloads for every user-facing operation
//   - Derive the operating mode from mode flags and the target temperature
//   - Serialise transactions per device (one write, one awaited notification)
//   - Publish state, acknowledgements and health over MQTT
//
// # Temperatures
//
// Temperatures travel as half-degree steps in one byte (raw = celsius*2).
// The operable range is [5.0, 29.5]. The values 4.5 and 30.0 are sentinels
// for "valve closed" and "valve open" and only ever appear as mode writes.
//
// Example:
//
//	payload, err := eq3.TemperatureCommand(21.5)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%X\n", payload) // "412B"
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
// A Device allows only one in-flight transaction at a time.
//
// # References
//
//   - Protocol notes: https://github.com/Heckie75/eQ-3-radiator-thermostat
//   - python-eq3bt: https://github.com/rytilahti/python-eq3bt
package eq3

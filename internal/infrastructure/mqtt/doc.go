// Package mqtt is the bridge's connection to the building's MQTT broker.
//
// Commands for a thermostat arrive on graylogic/command/eq3/{device_id}
// and requests on graylogic/request/eq3/{request_id}. The bridge answers
// on the ack, response, state and health topics built by Topics.
//
//	home automation <-> broker <-> eq3bridge <-> BLE <-> thermostats
//
// The client reconnects on its own and restores subscriptions when it
// does. Handlers run on paho goroutines behind panic recovery. The
// process publishes a retained online/offline status on
// graylogic/system/status; the daemon replaces the will with the eq3
// health topic (WithWill) so consumers see the bridge itself go offline.
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.WithWill(topic, offline))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.BridgeCommands("eq3"), 1, handle)
package mqtt

// Package mqtt provides the bridge's MQTT broker connection.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after reconnect
//   - A retained JSON status document with an offline Last Will
//   - Topic naming for discovery, state, availability and command topics
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.HomeAssistant.TopicPrefix, cfg.HomeAssistant.DiscoveryPrefix)
//	for _, filter := range topics.CommandFilters() {
//	    err = client.Subscribe(filter, 1, handleCommand)
//	}
//
// Handlers run on paho goroutines. A panicking handler is recovered and
// logged; it never takes the connection down.
package mqtt

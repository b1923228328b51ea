// Package mqtt provides MQTT client connectivity for the serial bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Topic name and filter validation for device-supplied topics
//   - Subscriptions with wildcard support, restored on reconnect
//   - Retained online/offline status with a matching LWT
//   - Delivery counters and handler panic recovery
//
// # Architecture
//
// The bridge is the only MQTT client; the device behind the serial link
// speaks the line protocol in package protocol and never sees MQTT directly.
//
//	Device ↔ serial line ↔ Bridge ↔ MQTT Broker
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) when the broker is not local
//   - Credentials are validated against broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Bridge.ID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("home/+/set", 0,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.Publish("home/temp", []byte("21"), 0, false)
package mqtt

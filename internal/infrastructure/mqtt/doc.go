// Package mqtt provides the broker connection cloudbridge publishes device
// state on and receives commands from.
//
// The client wraps paho.mqtt.golang with auto-reconnect, subscription
// restoration after reconnects, a retained online/offline marker with a
// matching last will, and handler panic recovery.
//
//	cloud ⇄ cloudbridge ⇄ MQTT broker ⇄ home automation consumers
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllCommands(), client.QoS(), handleCommand)
//	err = client.PublishRetained(topics.State("5f1c..."), payload)
//
// # Security Considerations
//
//   - Enable TLS (mqtt.broker.tls) when the broker is not on localhost.
//   - Anyone who can publish to {prefix}/command/+ can operate devices;
//     restrict that topic in the broker ACL.
package mqtt

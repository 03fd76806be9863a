// Package mqtt publishes service desk events to an MQTT broker.
//
// The service desk core uses MQTT only outbound: every stored audit entry
// is mirrored to {prefix}/audit/{action} so that other platform services
// (notifications, reporting) can react to account activity without polling
// the API. A retained {prefix}/system/status message tracks whether the
// core is online, with a Last Will and Testament covering crashes.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Publish(client.Topics().Audit("login"), payload, 1, false)
//
// Auto-reconnect is handled by paho with exponential backoff between
// reconnect.initial_delay and reconnect.max_delay. Publish fails fast with
// ErrNotConnected while the broker is unreachable.
package mqtt

// Package mqtt publishes gateway change events to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with a configured QoS
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Topics
//
// Every topic lives under the configured prefix (default "sqlgate"):
//
//	{prefix}/change/{table}   one message per successful mutation
//	{prefix}/system/status    retained online/offline status
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishChange("users", payload)
//
// The gateway runs without a broker; when MQTT is disabled no client is
// created and change events only reach the audit log and WebSocket feed.
package mqtt

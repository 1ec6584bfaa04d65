// Package mqttbridge mirrors devices onto an MQTT broker.
//
// For a device registered under name the bridge uses:
//
//	<prefix>/<name>/state         retained JSON of the friendly state
//	<prefix>/<name>/availability  retained "online" / "offline"
//	<prefix>/<name>/set           JSON partial state, applied to the device
//
// The bridge's own liveness is published on <prefix>/bridge/availability and
// covered by the client's last will.
package mqttbridge

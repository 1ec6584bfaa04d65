// Package config loads the YAML configuration shared by the command-line
// tools: the devices to control, how to reach their gateways, the MQTT
// bridge and logging.
//
// Values are resolved in order: built-in defaults, the YAML file, then
// DPCONTROL_* environment variables. The result is validated before use.
package config

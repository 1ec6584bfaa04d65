// Package profile maps device kinds onto the generic device controller.
//
// Each kind has a friendly state type (LightState, PlugState, CurtainState,
// SwitchState), a stateless device.Profile translating it to raw DPs, and a
// façade over *device.Controller with the kind's operations.
//
// DP layout:
//
//	light:   20 power, 21 mode, 22 brightness, 23 temperature, 24 colour, 25 scene
//	plug:    1 power
//	curtain: 1 state, 2 closed percentage, 7 last action
//	switch:  1..6 channels, 16 power indicator
//
// All façades implement Device, which generic tools use to drive any kind.
package profile

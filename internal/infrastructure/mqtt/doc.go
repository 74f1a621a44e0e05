// Package mqtt wraps the Eclipse Paho MQTT client for Gray Gate.
//
// It provides connection lifecycle management with Last Will and Testament
// on the system status topic, automatic reconnection with subscription
// restoration, panic-safe message handlers, and topic builders for the
// graygate/* namespace.
//
// # Topic scheme
//
//	graygate/event/{type}/{id}     change events (not retained)
//	graygate/state/{type}/{id}     mirrored resource state (retained)
//	graygate/command/{type}/{id}   local mutation requests (inbound)
//	graygate/system/status         online/offline status (retained, LWT)
package mqtt

// Package mqtt bridges the lock service to an MQTT broker.
//
// Topics live under the configured prefix: "availability" carries online or
// offline (the latter also as the will), "state" carries the retained status
// document and "set" accepts lock and unlock. Home Assistant discovery
// documents are published on every connection when enabled.
package mqtt

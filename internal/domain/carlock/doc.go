// Package carlock contains the domain types of the alcohol interlock:
// the Status snapshot, the persisted RelayState, the Actor that issued a
// change, and the Command set shared by the web, gRPC, MQTT and CLI surfaces.
package carlock

// Command alco-lock-server reads the alcohol sensor, drives the ignition relay
// and serves the status page, the gRPC control API and the MQTT bridge.
package main

import "github.com/oshokin/alco-lock/cmd/alco-lock-server/cmd"

func main() {
	cmd.Execute()
}

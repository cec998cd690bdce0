// Command alco-lock-ctl queries and controls an alco-lock-server over gRPC.
package main

import "github.com/oshokin/alco-lock/cmd/alco-lock-ctl/cmd"

func main() {
	cmd.Execute()
}

// Command laneproto-echo demonstrates a laneproto session pair exchanging
// messages over an in-memory lossy link, the same role the teacher's
// core/main.go + source/server/server.go play for its RakNet server: a
// small owner-driven loop around the protocol engine, started from a
// cobra command.
package main

import "github.com/ventosilenzioso/laneproto/logx"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logx.Fatal(err.Error())
	}
}

// Package logging sets up the process-wide structured logger shared by
// every service package, following the direct logrus-import idiom used
// by the connection hub this fabric is grounded on.
package logging

import (
	"os"

	log "github.com/sirupsen/logrus"
)

func init() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

// SetLevel parses level ("debug", "info", "warn", "error") and applies
// it to the package logger, falling back to InfoLevel on a bad value.
func SetLevel(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// Conn returns a logger scoped to one connection: every subsequent
// call carries these fields so a single stream of output can be
// grepped by service/world/channel without passing a context value
// through every function.
func Conn(service string, worldID, channel uint16) *log.Entry {
	return log.WithFields(log.Fields{
		"service": service,
		"world":   worldID,
		"channel": channel,
	})
}

// Peer scopes a logger to one raw TCP peer, before its world/channel
// are known (immediately after accept, during the handshake).
func Peer(service string, addr string) *log.Entry {
	return log.WithFields(log.Fields{
		"service": service,
		"peer":    addr,
	})
}

//go:build windows

package main

import (
	"os"
	"os/signal"
)

// notifySignals registers Ctrl-C on ch. Windows has no SIGTERM to abort
// the batch with.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}

func stopSignals(ch chan<- os.Signal) {
	signal.Stop(ch)
}

func isInterrupt(sig os.Signal) bool {
	return sig == os.Interrupt
}

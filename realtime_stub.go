//go:build !linux

package main

import "errors"

// enableRealtime is a no-op outside Linux; playback still works, it is just
// more exposed to scheduler jitter.
func enableRealtime() error {
	return errors.New("realtime scheduling is only supported on linux")
}

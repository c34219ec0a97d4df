//go:build linux

package main

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// rtPriority leaves headroom below the audio driver's own realtime threads.
const rtPriority = 70

// enableRealtime moves the process onto the SCHED_FIFO realtime scheduler so
// the player's sleep-until-deadline loop wakes on time under load. Requires
// CAP_SYS_NICE or an appropriate rtprio rlimit.
func enableRealtime() error {
	attr := &unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: rtPriority,
	}
	if err := unix.SchedSetAttr(0, attr, 0); err != nil {
		return fmt.Errorf("sched_setattr: %w", err)
	}
	return nil
}

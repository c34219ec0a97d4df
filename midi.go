package main

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// -------------------- Output port --------------------

// outPort is the session's exclusive handle on the MIDI output device.
// Reset silences every active note so an interrupted playback never leaves
// the instrument with keys held down.
type outPort interface {
	Send(data []byte) error
	Reset() error
	Close() error
}

// rtmidiOut owns both the rtmidi driver and the opened port; the two are
// released together.
type rtmidiOut struct {
	drv *rtmididrv.Driver
	out drivers.Out
}

// openOutPort opens the named MIDI output. Exact name match wins, then the
// first substring match.
func openOutPort(name string) (outPort, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	outs, err := drv.Outs()
	if err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("midi: list outputs: %w", err)
	}

	var found drivers.Out
	for _, o := range outs {
		if o.String() == name {
			found = o
			break
		}
	}
	if found == nil {
		for _, o := range outs {
			if strings.Contains(o.String(), name) {
				found = o
				break
			}
		}
	}
	if found == nil {
		_ = drv.Close()
		return nil, fmt.Errorf("midi: output %q not found", name)
	}
	if err := found.Open(); err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("midi: open %q: %w", found.String(), err)
	}

	logger.Info("midi: output opened", "port", found.String())
	return &rtmidiOut{drv: drv, out: found}, nil
}

func (m *rtmidiOut) Send(data []byte) error {
	return m.out.Send(data)
}

// Reset releases the sustain pedal and silences all notes on every channel.
func (m *rtmidiOut) Reset() error {
	var errs []error
	for ch := uint8(0); ch < 16; ch++ {
		// CC 64 = sustain pedal, CC 123 = all notes off, CC 120 = all sound off.
		for _, cc := range []uint8{64, 123, 120} {
			if err := m.out.Send(midi.ControlChange(ch, cc, 0)); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("midi: reset: %w", errors.Join(errs...))
	}
	logger.Info("midi: output reset", "port", m.out.String())
	return nil
}

func (m *rtmidiOut) Close() error {
	err := m.out.Close()
	if derr := m.drv.Close(); err == nil {
		err = derr
	}
	return err
}

// -------------------- Enumeration --------------------

// listOutPorts returns the names of all available MIDI output ports.
func listOutPorts() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	defer drv.Close()
	outs, err := drv.Outs()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(outs))
	for _, o := range outs {
		names = append(names, o.String())
	}
	return names, nil
}

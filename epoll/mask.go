package epoll

import (
	"fmt"
	"strconv"
	"strings"
)

// Mask is a set of readiness bits and registration flags. Bit values match
// the Linux EPOLL* constants.
type Mask uint32

// Readiness bits.
const (
	EventIn     Mask = 0x1
	EventPri    Mask = 0x2
	EventOut    Mask = 0x4
	EventErr    Mask = 0x8
	EventHup    Mask = 0x10
	EventRdNorm Mask = 0x40
	EventRdBand Mask = 0x80
	EventWrNorm Mask = 0x100
	EventWrBand Mask = 0x200
	EventMsg    Mask = 0x400
	EventRdHup  Mask = 0x2000
)

// Registration flags.
const (
	OneShot       Mask = 1 << 30
	EdgeTriggered Mask = 1 << 31
)

const (
	eventBits = EventIn | EventPri | EventOut | EventErr | EventHup | EventRdNorm |
		EventRdBand | EventWrNorm | EventWrBand | EventMsg | EventRdHup
	flagBits = OneShot | EdgeTriggered

	// reported whether or not the caller asked for them
	alwaysWatched = EventErr | EventHup
)

var maskNames = []struct {
	bit  Mask
	name string
}{
	{EventIn, "in"},
	{EventPri, "pri"},
	{EventOut, "out"},
	{EventErr, "err"},
	{EventHup, "hup"},
	{EventRdNorm, "rdnorm"},
	{EventRdBand, "rdband"},
	{EventWrNorm, "wrnorm"},
	{EventWrBand, "wrband"},
	{EventMsg, "msg"},
	{EventRdHup, "rdhup"},
	{OneShot, "oneshot"},
	{EdgeTriggered, "et"},
}

// Events strips the registration flags.
func (m Mask) Events() Mask {
	return m & eventBits
}

// Valid reports whether m only contains known bits.
func (m Mask) Valid() bool {
	return m&^(eventBits|flagBits) == 0
}

func (m Mask) EdgeTriggered() bool {
	return m&EdgeTriggered != 0
}

func (m Mask) OneShot() bool {
	return m&OneShot != 0
}

func (m Mask) String() string {
	if m == 0 {
		return "0"
	}
	var parts []string
	rest := m
	for _, n := range maskNames {
		if m&n.bit != 0 {
			parts = append(parts, n.name)
			rest &^= n.bit
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseMask parses names joined by '|' or ',' ("in|out|et"), or a numeric
// value accepted by strconv.ParseUint with base 0.
func ParseMask(s string) (Mask, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty mask", ErrInvalidArgument)
	}
	if v, err := strconv.ParseUint(s, 0, 32); err == nil {
		return Mask(v), nil
	}

	var m Mask
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		tok = strings.ToLower(strings.TrimSpace(tok))
		tok = strings.TrimPrefix(tok, "epoll")
		found := false
		for _, n := range maskNames {
			if n.name == tok {
				m |= n.bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: unknown mask bit %q", ErrInvalidArgument, tok)
		}
	}
	return m, nil
}

package abi

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxAxes is the number of analog axes exposed across the boundary.
const MaxAxes = 8

// InputStateSize is the wire size of InputState.
const InputStateSize = 8 + 4*MaxAxes

// InputState is the arbitrated input for one tick.
type InputState struct {
	// DigitalMask holds up to 64 digital actions, bit n for ActionID n.
	DigitalMask uint64
	Axes        [MaxAxes]float32
}

// IsActive reports whether the action bit is set. Ids outside the mask,
// including ActionNotFound, are never active.
func (s *InputState) IsActive(id ActionID) bool {
	if id >= 64 {
		return false
	}
	return s.DigitalMask&(1<<id) != 0
}

// Set turns an action bit on or off.
func (s *InputState) Set(id ActionID, active bool) {
	if id >= 64 {
		return
	}
	if active {
		s.DigitalMask |= 1 << id
	} else {
		s.DigitalMask &^= 1 << id
	}
}

// MarshalBinary encodes the state in its fixed little-endian layout.
func (s *InputState) MarshalBinary() ([]byte, error) {
	buf := make([]byte, InputStateSize)
	s.Put(buf)
	return buf, nil
}

// Put writes the state into dst, which must hold InputStateSize bytes.
func (s *InputState) Put(dst []byte) {
	_ = dst[InputStateSize-1]
	binary.LittleEndian.PutUint64(dst, s.DigitalMask)
	for i, a := range s.Axes {
		binary.LittleEndian.PutUint32(dst[8+4*i:], math.Float32bits(a))
	}
}

// UnmarshalBinary decodes the fixed layout written by MarshalBinary.
func (s *InputState) UnmarshalBinary(data []byte) error {
	if len(data) < InputStateSize {
		return fmt.Errorf("input state: need %d bytes, have %d", InputStateSize, len(data))
	}
	s.DigitalMask = binary.LittleEndian.Uint64(data)
	for i := range s.Axes {
		s.Axes[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[8+4*i:]))
	}
	return nil
}

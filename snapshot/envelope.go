package snapshot

import (
	"encoding/binary"

	"github.com/wippyai/hotswap/abi"
	"github.com/wippyai/hotswap/errors"
)

// Envelope is the fixed header that precedes every snapshot payload.
type Envelope struct {
	Magic        uint32
	StateVersion uint32
	SchemaHash   uint64
	PayloadLen   uint64
}

// NewEnvelope returns a header for a payload of n bytes.
func NewEnvelope(schemaHash uint64, n int) Envelope {
	return Envelope{
		Magic:        abi.SnapshotMagic,
		StateVersion: abi.StateVersion,
		SchemaHash:   schemaHash,
		PayloadLen:   uint64(n),
	}
}

// Put writes the header into the first abi.EnvelopeSize bytes of dst.
func (e Envelope) Put(dst []byte) error {
	if len(dst) < abi.EnvelopeSize {
		return errors.New(errors.PhaseSnapshot, errors.KindBufferTooSmall).
			Detail("need %d bytes for header, have %d", abi.EnvelopeSize, len(dst)).
			Build()
	}
	binary.LittleEndian.PutUint32(dst[0:], e.Magic)
	binary.LittleEndian.PutUint32(dst[4:], e.StateVersion)
	binary.LittleEndian.PutUint64(dst[8:], e.SchemaHash)
	binary.LittleEndian.PutUint64(dst[16:], e.PayloadLen)
	return nil
}

// ReadEnvelope copies the header out of src.
func ReadEnvelope(src []byte) (Envelope, error) {
	if len(src) < abi.EnvelopeSize {
		return Envelope{}, errors.InvalidData(errors.PhaseSnapshot, "buffer shorter than envelope header")
	}
	var hdr [abi.EnvelopeSize]byte
	copy(hdr[:], src)
	return Envelope{
		Magic:        binary.LittleEndian.Uint32(hdr[0:]),
		StateVersion: binary.LittleEndian.Uint32(hdr[4:]),
		SchemaHash:   binary.LittleEndian.Uint64(hdr[8:]),
		PayloadLen:   binary.LittleEndian.Uint64(hdr[16:]),
	}, nil
}

// Check validates a header against the expected schema and the length of
// the buffer it was read from. Checks run in a fixed order: magic, then
// schema, then payload length.
func (e Envelope) Check(schemaHash uint64, bufLen int) abi.Result {
	if e.Magic != abi.SnapshotMagic {
		return abi.Error
	}
	if e.SchemaHash != schemaHash {
		return abi.SchemaMismatch
	}
	remaining := uint64(bufLen - abi.EnvelopeSize)
	if bufLen < abi.EnvelopeSize || e.PayloadLen > remaining {
		return abi.Error
	}
	return abi.Success
}

// Payload returns the payload slice of a buffer whose header passed Check.
func (e Envelope) Payload(buf []byte) []byte {
	return buf[abi.EnvelopeSize : abi.EnvelopeSize+int(e.PayloadLen)]
}

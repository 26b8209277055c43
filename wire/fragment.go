package wire

import (
	"github.com/pkg/errors"

	"github.com/ventosilenzioso/laneproto/seq"
)

// MaxFrags is the largest number of fragments a single message may be split
// into: FragmentMarker packs the index into 7 bits.
const MaxFrags = 128

// ErrFragmentIndexOutOfRange is returned by LastFragmentMarker and
// NonLastFragmentMarker when index doesn't fit in 7 bits.
var ErrFragmentIndexOutOfRange = errors.New("wire: fragment index out of range")

// FragmentMarker packs a fragment's index within its message (low 7 bits)
// and whether it is the last fragment of that message (high bit) into one
// byte.
type FragmentMarker uint8

// LastFragmentMarker builds a marker for the final fragment of a message.
func LastFragmentMarker(index uint8) (FragmentMarker, error) {
	if index >= MaxFrags {
		return 0, ErrFragmentIndexOutOfRange
	}
	return FragmentMarker(index | 0x80), nil
}

// NonLastFragmentMarker builds a marker for a non-final fragment.
func NonLastFragmentMarker(index uint8) (FragmentMarker, error) {
	if index >= MaxFrags {
		return 0, ErrFragmentIndexOutOfRange
	}
	return FragmentMarker(index), nil
}

// Index returns the fragment's index within its message, in [0, 127].
func (m FragmentMarker) Index() uint8 {
	return uint8(m) & 0x7f
}

// IsLast reports whether this is the final fragment of its message.
func (m FragmentMarker) IsLast() bool {
	return uint8(m)&0x80 != 0
}

// FragmentHeaderLen is the fixed portion of FragmentHeader's encoding: the
// varint lane index is variable-length and not included.
const FragmentHeaderLen = 2 + 1 // msg_seq (u16) + marker (u8)

// FragmentHeader identifies which lane, message and fragment index a
// Fragment belongs to.
type FragmentHeader struct {
	LaneIndex uint32
	MsgSeq    seq.Message
	Marker    FragmentMarker
}

// EncodeLen returns the exact encoded size of h, including its varint lane
// index.
func (h FragmentHeader) EncodeLen() int {
	return VarintLen(uint64(h.LaneIndex)) + FragmentHeaderLen
}

func (h FragmentHeader) Encode(w *Writer) {
	w.WriteVarint(uint64(h.LaneIndex))
	w.WriteUint16(uint16(h.MsgSeq))
	w.WriteByte(byte(h.Marker))
}

func DecodeFragmentHeader(r *Reader) (FragmentHeader, error) {
	laneIndex, err := r.ReadVarint()
	if err != nil {
		return FragmentHeader{}, errors.Wrap(err, "lane index")
	}
	msgSeq, err := r.ReadUint16()
	if err != nil {
		return FragmentHeader{}, errors.Wrap(err, "msg seq")
	}
	marker, err := r.ReadByte()
	if err != nil {
		return FragmentHeader{}, errors.Wrap(err, "marker")
	}
	return FragmentHeader{
		LaneIndex: uint32(laneIndex),
		MsgSeq:    seq.Message(msgSeq),
		Marker:    FragmentMarker(marker),
	}, nil
}

// Fragment is one on-wire unit: a header plus its length-prefixed payload.
type Fragment struct {
	Header  FragmentHeader
	Payload []byte
}

// EncodeLen returns the exact encoded size of f.
func (f Fragment) EncodeLen() int {
	return f.Header.EncodeLen() + VarintLen(uint64(len(f.Payload))) + len(f.Payload)
}

func (f Fragment) Encode(w *Writer) {
	f.Header.Encode(w)
	w.WriteVarint(uint64(len(f.Payload)))
	w.WriteBytes(f.Payload)
}

func DecodeFragment(r *Reader) (Fragment, error) {
	return DecodeFragmentWithLimit(r, 1<<31)
}

// ErrPayloadTooLarge is returned by DecodeFragmentWithLimit when a fragment
// declares a payload length above the caller-supplied limit, before any
// attempt is made to read that many bytes.
var ErrPayloadTooLarge = errors.New("wire: fragment payload length too large")

// DecodeFragmentWithLimit decodes one Fragment, rejecting (with
// ErrPayloadTooLarge) any declared payload length greater than
// maxPayloadLen. Callers processing untrusted input should use this instead
// of DecodeFragment so a corrupt or hostile length prefix is caught before
// it's used to size a read.
func DecodeFragmentWithLimit(r *Reader, maxPayloadLen int) (Fragment, error) {
	header, err := DecodeFragmentHeader(r)
	if err != nil {
		return Fragment{}, err
	}
	payloadLen, err := r.ReadVarint()
	if err != nil {
		return Fragment{}, errors.Wrap(err, "payload length")
	}
	if payloadLen > uint64(maxPayloadLen) {
		return Fragment{}, ErrPayloadTooLarge
	}
	payload, err := r.ReadBytes(int(payloadLen))
	if err != nil {
		return Fragment{}, errors.Wrap(err, "payload")
	}
	return Fragment{Header: header, Payload: payload}, nil
}

package collective

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/golang/snappy"
	"github.com/google/uuid"
)

// Frame layout:
//
//	magic "SC" | version | op | flags | rank uvarint | seq uvarint | root uvarint | run id (16) | body
//
// body is snappy-compressed: zig-zag varints for ints, raw text for an abort cause.
const (
	frameVersion = 1
	flagAbort    = 1 << 0
)

var (
	frameMagic = [2]byte{'S', 'C'}

	errShortFrame = errors.New("short frame")
)

type frame struct {
	Op    Op
	Abort bool
	Rank  int
	Seq   uint64
	Root  int
	RunID uuid.UUID
	Ints  []int
	Cause string
}

func encodeFrame(f frame) []byte {
	hdr := make([]byte, 0, 5+3*binary.MaxVarintLen64+len(f.RunID))
	hdr = append(hdr, frameMagic[0], frameMagic[1], frameVersion, byte(f.Op))
	var flags byte
	if f.Abort {
		flags |= flagAbort
	}
	hdr = append(hdr, flags)
	hdr = binary.AppendUvarint(hdr, uint64(f.Rank))
	hdr = binary.AppendUvarint(hdr, f.Seq)
	hdr = binary.AppendUvarint(hdr, uint64(f.Root))
	hdr = append(hdr, f.RunID[:]...)

	var raw []byte
	if f.Abort {
		raw = []byte(f.Cause)
	} else {
		raw = make([]byte, 0, binary.MaxVarintLen64+len(f.Ints)*2)
		raw = binary.AppendUvarint(raw, uint64(len(f.Ints)))
		for _, v := range f.Ints {
			raw = binary.AppendVarint(raw, int64(v))
		}
	}
	return append(hdr, snappy.Encode(nil, raw)...)
}

func decodeFrame(b []byte) (frame, error) {
	var f frame
	if len(b) < 5 {
		return f, errShortFrame
	}
	if b[0] != frameMagic[0] || b[1] != frameMagic[1] {
		return f, fmt.Errorf("bad frame magic %q", b[:2])
	}
	if b[2] != frameVersion {
		return f, fmt.Errorf("unsupported frame version %d", b[2])
	}
	f.Op = Op(b[3])
	f.Abort = b[4]&flagAbort != 0
	b = b[5:]

	var fields [3]uint64
	for i := range fields {
		v, n := binary.Uvarint(b)
		if n <= 0 {
			return f, errShortFrame
		}
		fields[i] = v
		b = b[n:]
	}
	f.Rank, f.Seq, f.Root = int(fields[0]), fields[1], int(fields[2])

	if len(b) < len(f.RunID) {
		return f, errShortFrame
	}
	copy(f.RunID[:], b[:len(f.RunID)])
	b = b[len(f.RunID):]

	raw, err := snappy.Decode(nil, b)
	if err != nil {
		return f, fmt.Errorf("decompressing frame body: %w", err)
	}
	if f.Abort {
		f.Cause = string(raw)
		return f, nil
	}

	count, n := binary.Uvarint(raw)
	if n <= 0 {
		return f, errShortFrame
	}
	raw = raw[n:]
	// every varint takes at least one byte
	if count > uint64(len(raw)) {
		return f, fmt.Errorf("frame declares %d ints in %d bytes", count, len(raw))
	}
	f.Ints = make([]int, count)
	for i := range f.Ints {
		v, n := binary.Varint(raw)
		if n <= 0 {
			return f, errShortFrame
		}
		f.Ints[i] = int(v)
		raw = raw[n:]
	}
	return f, nil
}

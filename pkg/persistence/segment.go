package persistence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// SegmentMagic and SegmentVersion identify the segment frame format
// (spec.md §6 on-disk formats).
var SegmentMagic = [4]byte{'V', 'C', 'S', 'G'}

const SegmentVersion uint32 = 1

// ErrCorruptSegment is returned by DecodeSegment on a bad magic, version, or
// checksum mismatch (spec.md §7 Corrupt).
var ErrCorruptSegment = errors.New("persistence: corrupt segment")

// SegmentRow is one packed vector row within a segment.
type SegmentRow struct {
	ID   uint32
	Meta []byte
	Vec  []float32
}

// EncodeSegment packs rows into the on-disk segment frame: a header
// followed by one or more rows, checksummed over the row body with xxhash
// (a 64-bit checksum, as spec.md §6 requires, without hand-rolling one).
func EncodeSegment(dim uint32, rows []SegmentRow) []byte {
	var body bytes.Buffer

	var u32 [4]byte

	for _, row := range rows {
		binary.LittleEndian.PutUint32(u32[:], row.ID)
		body.Write(u32[:])

		binary.LittleEndian.PutUint32(u32[:], uint32(len(row.Meta)))
		body.Write(u32[:])

		body.Write(row.Meta)

		for _, f := range row.Vec {
			binary.LittleEndian.PutUint32(u32[:], math.Float32bits(f))
			body.Write(u32[:])
		}
	}

	checksum := xxhash.Sum64(body.Bytes())

	var out bytes.Buffer

	out.Write(SegmentMagic[:])

	binary.LittleEndian.PutUint32(u32[:], SegmentVersion)
	out.Write(u32[:])

	binary.LittleEndian.PutUint32(u32[:], dim)
	out.Write(u32[:])

	binary.LittleEndian.PutUint32(u32[:], uint32(len(rows)))
	out.Write(u32[:])

	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], checksum)
	out.Write(u64[:])

	out.Write(body.Bytes())

	return out.Bytes()
}

const segmentHeaderLen = 4 + 4 + 4 + 4 + 8

// DecodeSegment unpacks and verifies a segment frame, returning
// ErrCorruptSegment on bad magic/version/checksum (spec.md §4.11 step 2:
// "verify checksum; decode rows").
func DecodeSegment(data []byte) (dim uint32, rows []SegmentRow, err error) {
	if len(data) < segmentHeaderLen {
		return 0, nil, fmt.Errorf("%w: truncated header", ErrCorruptSegment)
	}

	if !bytes.Equal(data[0:4], SegmentMagic[:]) {
		return 0, nil, fmt.Errorf("%w: bad magic", ErrCorruptSegment)
	}

	version := binary.LittleEndian.Uint32(data[4:8])
	if version != SegmentVersion {
		return 0, nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptSegment, version)
	}

	dim = binary.LittleEndian.Uint32(data[8:12])
	rowCount := binary.LittleEndian.Uint32(data[12:16])
	wantChecksum := binary.LittleEndian.Uint64(data[16:24])

	body := data[segmentHeaderLen:]
	if xxhash.Sum64(body) != wantChecksum {
		return 0, nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptSegment)
	}

	rows = make([]SegmentRow, 0, rowCount)

	offset := 0

	for i := uint32(0); i < rowCount; i++ {
		if offset+8 > len(body) {
			return 0, nil, fmt.Errorf("%w: truncated row header", ErrCorruptSegment)
		}

		id := binary.LittleEndian.Uint32(body[offset : offset+4])
		metaLen := binary.LittleEndian.Uint32(body[offset+4 : offset+8])
		offset += 8

		if offset+int(metaLen)+int(dim)*4 > len(body) {
			return 0, nil, fmt.Errorf("%w: truncated row body", ErrCorruptSegment)
		}

		meta := append([]byte(nil), body[offset:offset+int(metaLen)]...)
		offset += int(metaLen)

		vec := make([]float32, dim)
		for d := uint32(0); d < dim; d++ {
			vec[d] = math.Float32frombits(binary.LittleEndian.Uint32(body[offset : offset+4]))
			offset += 4
		}

		rows = append(rows, SegmentRow{ID: id, Meta: meta, Vec: vec})
	}

	return dim, rows, nil
}

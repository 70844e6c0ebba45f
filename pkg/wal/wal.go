// Package wal implements the write-ahead log frame format and idempotent
// replay described in spec.md §4.9: magic-prefixed, length-prefixed binary
// records that the decoder resynchronizes on after a misaligned frame; a
// corrupted record stops decoding with ErrCorruptMidStream.
package wal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Magic identifies a WAL frame header.
var Magic = [4]byte{'V', 'L', 'W', 'A'}

// Version is the only WAL format version this package writes/understands.
const Version uint32 = 1

// RecordType tags what kind of mutation a record replays.
type RecordType uint8

const (
	Upsert  RecordType = 1
	Remove  RecordType = 2
	SetMeta RecordType = 3
)

// Record is one decoded WAL entry.
type Record struct {
	Type RecordType
	ID   uint32
	Meta []byte
	Vec  []float32
}

const headerLen = 4 + 4 // magic + version
const recordHeaderLen = 1 + 1 + 4 + 4 + 4 // type, reserved, id, metaLen, vecLen

// ErrCorruptMidStream is returned by DecodeAll when a frame header parses
// but carries an unsupported version, or a complete record declares a vector
// byte length that is not a multiple of 4 — spec.md §4.9/§7 treats this as a
// diagnostic-bearing abort, not a tolerated truncation.
var ErrCorruptMidStream = errors.New("wal: corrupt mid-stream record")

// Encode appends the binary frame for r to buf.
func Encode(buf *bytes.Buffer, r Record) {
	buf.Write(Magic[:])

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], Version)
	buf.Write(u32[:])

	buf.WriteByte(byte(r.Type))
	buf.WriteByte(0) // reserved

	binary.LittleEndian.PutUint32(u32[:], r.ID)
	buf.Write(u32[:])

	binary.LittleEndian.PutUint32(u32[:], uint32(len(r.Meta)))
	buf.Write(u32[:])

	binary.LittleEndian.PutUint32(u32[:], uint32(len(r.Vec)*4))
	buf.Write(u32[:])

	buf.Write(r.Meta)

	for _, f := range r.Vec {
		binary.LittleEndian.PutUint32(u32[:], math.Float32bits(f))
		buf.Write(u32[:])
	}
}

// DecodeAll scans data for concatenated frames, resynchronizing on the next
// occurrence of Magic whenever the current offset is misaligned. It returns
// every record fully parsed so far, the offset through which the stream was
// consumed cleanly, and an error only for a mid-stream corrupted record (bad
// version or odd vector byte length); a truncated tail is not an error — it is silently discarded, per
// spec.md §4.9.
func DecodeAll(data []byte) ([]Record, int, error) {
	var records []Record

	offset := 0

	for offset < len(data) {
		remaining := data[offset:]

		if len(remaining) < headerLen {
			break
		}

		if !bytes.Equal(remaining[0:4], Magic[:]) {
			next := bytes.Index(data[offset+1:], Magic[:])
			if next == -1 {
				break
			}

			offset = offset + 1 + next

			continue
		}

		version := binary.LittleEndian.Uint32(remaining[4:8])
		if version != Version {
			return records, offset, fmt.Errorf("%w: unsupported version %d at offset %d", ErrCorruptMidStream, version, offset)
		}

		body := remaining[headerLen:]
		if len(body) < recordHeaderLen {
			break
		}

		typ := RecordType(body[0])
		id := binary.LittleEndian.Uint32(body[2:6])
		metaLen := binary.LittleEndian.Uint32(body[6:10])
		vecLen := binary.LittleEndian.Uint32(body[10:14])

		need := recordHeaderLen + int(metaLen) + int(vecLen)
		if len(body) < need {
			break
		}

		if vecLen%4 != 0 {
			return records, offset, fmt.Errorf("%w: odd vector byte length at offset %d", ErrCorruptMidStream, offset)
		}

		var meta []byte
		if metaLen > 0 {
			meta = append([]byte(nil), body[recordHeaderLen:recordHeaderLen+int(metaLen)]...)
		}

		var vec []float32
		if vecLen > 0 {
			vecBytes := body[recordHeaderLen+int(metaLen) : recordHeaderLen+int(metaLen)+int(vecLen)]
			vec = make([]float32, vecLen/4)

			for i := range vec {
				vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(vecBytes[i*4 : i*4+4]))
			}
		}

		records = append(records, Record{Type: typ, ID: id, Meta: meta, Vec: vec})

		offset += headerLen + need
	}

	return records, offset, nil
}

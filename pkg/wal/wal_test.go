package wal_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trkbt10/vectorlite/pkg/vecstore"
	"github.com/trkbt10/vectorlite/pkg/wal"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	records := []wal.Record{
		{Type: wal.Upsert, ID: 1, Meta: []byte("a"), Vec: []float32{1, 2, 3}},
		{Type: wal.Remove, ID: 2},
		{Type: wal.SetMeta, ID: 1, Meta: []byte("b")},
	}

	var buf bytes.Buffer
	for _, r := range records {
		wal.Encode(&buf, r)
	}

	decoded, offset, err := wal.DecodeAll(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, buf.Len(), offset)
	require.Equal(t, records, decoded)
}

func TestDecodeAll_TruncatedTailTolerated(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	wal.Encode(&buf, wal.Record{Type: wal.Upsert, ID: 1, Vec: []float32{1}})

	full := buf.Bytes()
	truncated := full[:len(full)-2]

	decoded, _, err := wal.DecodeAll(truncated)
	require.NoError(t, err)
	require.Empty(t, decoded)
}

func TestDecodeAll_ResyncsOnMisalignment(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	buf.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	wal.Encode(&buf, wal.Record{Type: wal.Remove, ID: 7})

	decoded, _, err := wal.DecodeAll(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	require.Equal(t, uint32(7), decoded[0].ID)
}

type fakeMutator struct {
	store *vecstore.Store
}

func (f fakeMutator) Add(id uint32, vec []float32, meta []byte, upsert bool) error {
	return f.store.Add(id, vec, meta, upsert)
}
func (f fakeMutator) Remove(id uint32) bool              { return f.store.Remove(id) }
func (f fakeMutator) SetMeta(id uint32, meta []byte) error { return f.store.SetMeta(id, meta) }

func TestReplay_Idempotent(t *testing.T) {
	t.Parallel()

	records := []wal.Record{
		{Type: wal.Upsert, ID: 42, Vec: []float32{1, 0}, Meta: []byte("x")},
		{Type: wal.SetMeta, ID: 42, Meta: []byte("y")},
		{Type: wal.Remove, ID: 42},
		{Type: wal.Upsert, ID: 1, Vec: []float32{1, 0}},
	}

	s1 := vecstore.New(2, vecstore.Dot, nil)
	require.NoError(t, wal.Replay(fakeMutator{s1}, records))

	s2 := vecstore.New(2, vecstore.Dot, nil)
	require.NoError(t, wal.Replay(fakeMutator{s2}, records))
	require.NoError(t, wal.Replay(fakeMutator{s2}, records))

	require.Equal(t, s1.AllIDs(), s2.AllIDs())
	require.False(t, s1.Has(42))
	require.True(t, s1.Has(1))
}

package cfb

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterEmptyContainer(t *testing.T) {
	w := NewWriter()
	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)
	require.True(t, buf.Len() >= 512)

	r, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Empty(t, r.Root().Children())
}

func TestWriterRoundTripMiniAndNormalStreams(t *testing.T) {
	w := NewWriter()
	small := bytes.Repeat([]byte{0xAB}, 100) // routed through the mini-FAT
	large := bytes.Repeat([]byte{0xCD}, 9000) // exceeds the mini cutoff

	_, err := w.CreateStream(w.Root(), "Small", small)
	require.NoError(t, err)
	_, err = w.CreateStream(w.Root(), "Large", large)
	require.NoError(t, err)

	sub, err := w.CreateStorage(w.Root(), "Sub")
	require.NoError(t, err)
	_, err = w.CreateStream(sub, "Nested", []byte("hello nested"))
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = w.WriteTo(&buf)
	require.NoError(t, err)

	r, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	defer r.Close()

	smallEnt, err := r.Root().Child("Small")
	require.NoError(t, err)
	s, err := r.Open(smallEnt)
	require.NoError(t, err)
	got, err := s.ReadAll()
	require.NoError(t, err)
	require.Equal(t, small, got)

	largeEnt, err := r.Root().Child("Large")
	require.NoError(t, err)
	s2, err := r.Open(largeEnt)
	require.NoError(t, err)
	got2, err := s2.ReadAll()
	require.NoError(t, err)
	require.Equal(t, large, got2)

	nested, err := r.OpenPath("/Sub/Nested")
	require.NoError(t, err)
	got3, err := nested.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "hello nested", string(got3))
}

func TestWriterRejectsDuplicateSiblingNames(t *testing.T) {
	w := NewWriter()
	_, err := w.CreateStream(w.Root(), "Dup", []byte("a"))
	require.NoError(t, err)
	_, err = w.CreateStream(w.Root(), "dup", []byte("b")) // case-insensitive collision
	require.Error(t, err)
}

func TestWriterRejectsOversizeName(t *testing.T) {
	w := NewWriter()
	longName := string(bytes.Repeat([]byte("x"), 40))
	_, err := w.CreateStream(w.Root(), longName, nil)
	require.Error(t, err)
}

func TestFixpointConverges(t *testing.T) {
	fatSectors, difatSectors, err := fixpoint(1, 0, 0, 0, 128)
	require.NoError(t, err)
	require.Equal(t, 1, fatSectors)
	require.Equal(t, 0, difatSectors)
}

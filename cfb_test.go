package cfb

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestWriterSetCLSIDRoundTrips(t *testing.T) {
	w := NewWriter()
	id := uuid.New()
	require.NoError(t, w.SetCLSID(w.Root(), id))

	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)

	r, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	defer r.Close()

	got, ok := r.Root().CLSID()
	require.True(t, ok)
	require.Equal(t, id, got)
}

func TestWithSectorSizeAffectsLayout(t *testing.T) {
	w := NewWriter(WithSectorSize(4096))
	_, err := w.CreateStream(w.Root(), "F", bytes.Repeat([]byte{1}, 5000))
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = w.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, 0, buf.Len()%4096)

	r, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	e, err := r.Root().Child("F")
	require.NoError(t, err)
	s, err := r.Open(e)
	require.NoError(t, err)
	got, err := s.ReadAll()
	require.NoError(t, err)
	require.Equal(t, 5000, len(got))
}

func TestUnknownDLLVersionOnlyWarns(t *testing.T) {
	buf := make([]byte, lenHeader)
	copy(buf[0:8], []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	buf[28], buf[29] = 0xFE, 0xFF // little-endian BOM
	buf[30], buf[31] = 9, 0       // sector shift 9
	buf[32], buf[33] = 6, 0       // mini shift 6
	buf[26], buf[27] = 9, 0       // bogus dll_version, should only warn

	var sink recordingSink
	_, err := decodeHeader(buf, newDiagnostics(&sink))
	require.NoError(t, err)
	require.Len(t, sink.warnings, 1)
	require.Equal(t, WarnHeaderVersion, sink.warnings[0].Kind)
}

type recordingSink struct {
	warnings []*Warning
}

func (s *recordingSink) Warn(w *Warning) { s.warnings = append(s.warnings, w) }

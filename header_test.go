package cfb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeHeaderRejectsBadMagic(t *testing.T) {
	buf := make([]byte, lenHeader)
	_, err := decodeHeader(buf, nil)
	require.Error(t, err)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, ErrInvalidMagic, fe.Kind)
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := &header{
		minorVersion: 0x3E,
		majorVersion: 3,
		sectorShift:  9,
		miniShift:    6,
		fatSectCount: 1,
		dirStart:     0,
		miniCutoff:   4096,
		miniFatStart: endOfChain,
		difatStart:   endOfChain,
		sectorSize:   512,
	}
	buf := encodeHeader(h, []uint32{7})
	require.Len(t, buf, 512)

	got, err := decodeHeader(buf, nil)
	require.NoError(t, err)
	require.Equal(t, h.majorVersion, got.majorVersion)
	require.Equal(t, h.sectorShift, got.sectorShift)
	require.Equal(t, h.miniShift, got.miniShift)
	require.Equal(t, h.dirStart, got.dirStart)
	require.Equal(t, h.miniCutoff, got.miniCutoff)
	require.Equal(t, uint32(7), got.inlineDifat[0])
	require.Equal(t, freeSect, got.inlineDifat[1])
}

func TestSectorShift(t *testing.T) {
	require.Equal(t, uint16(9), sectorShift(512))
	require.Equal(t, uint16(12), sectorShift(4096))
}

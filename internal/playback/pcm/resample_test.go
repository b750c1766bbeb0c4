package pcm

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stereo encodes frames whose right channel mirrors the left.
func stereo(left ...int16) []byte {
	out := make([]byte, 0, len(left)*FrameSize)
	for _, v := range left {
		out = binary.LittleEndian.AppendUint16(out, uint16(v))
		out = binary.LittleEndian.AppendUint16(out, uint16(-v))
	}
	return out
}

func leftChannel(t *testing.T, data []byte) []int16 {
	t.Helper()
	require.Zero(t, len(data)%FrameSize)
	out := make([]int16, 0, len(data)/FrameSize)
	for i := 0; i < len(data); i += FrameSize {
		l := int16(binary.LittleEndian.Uint16(data[i:]))
		r := int16(binary.LittleEndian.Uint16(data[i+2:]))
		assert.Equal(t, -l, r, "channels stay independent")
		out = append(out, l)
	}
	return out
}

func TestResample(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		in       []int16
		want     []int16
	}{
		{"upsample 22050 to 44100", 22050, 44100, []int16{0, 100, 200, 300}, []int16{0, 50, 100, 150, 200, 250}},
		{"downsample 48000 to 24000", 48000, 24000, []int16{0, 100, 200, 300, 400, 500, 600, 700}, []int16{0, 200, 400, 600}},
		{"single frame", 22050, 44100, []int16{42}, []int16{}},
		{"empty", 48000, 44100, nil, []int16{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := iotest.OneByteReader(bytes.NewReader(stereo(tt.in...)))
			got, err := io.ReadAll(Resample(src, tt.from, tt.to))
			require.NoError(t, err)
			assert.Equal(t, tt.want, leftChannel(t, got))
		})
	}
}

func TestResample_SameRateIsPassthrough(t *testing.T) {
	src := bytes.NewReader(stereo(1, 2, 3))
	assert.Same(t, src, Resample(src, 44100, 44100))
}

func TestResample_LengthFollowsRatio(t *testing.T) {
	in := make([]int16, 48000)
	got, err := io.ReadAll(Resample(bytes.NewReader(stereo(in...)), 48000, 44100))
	require.NoError(t, err)

	frames := len(got) / FrameSize
	assert.InDelta(t, 44100, frames, 2)
}

func TestResample_TinyReads(t *testing.T) {
	in := stereo(0, 100, 200, 300)

	whole, err := io.ReadAll(Resample(bytes.NewReader(in), 22050, 44100))
	require.NoError(t, err)

	// three bytes at a time splits every frame
	var got []byte
	r := Resample(bytes.NewReader(in), 22050, 44100)
	buf := make([]byte, 3)
	for {
		n, err := r.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, whole, got)
}

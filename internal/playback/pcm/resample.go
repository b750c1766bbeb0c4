// Package pcm converts decoded audio between sample rates.
package pcm

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// FrameSize is the size of one 16-bit little-endian stereo frame.
const FrameSize = 4

type frame [2]int16

// Resample converts 16-bit little-endian stereo PCM read from r from one
// sample rate to another by linear interpolation. Equal rates return r.
func Resample(r io.Reader, from, to int) io.Reader {
	if from == to || from <= 0 || to <= 0 {
		return r
	}
	return &resampler{
		src:  bufio.NewReaderSize(r, 16<<10),
		step: float64(from) / float64(to),
	}
}

type resampler struct {
	src  *bufio.Reader
	step float64 // source frames per output frame

	// the next output frame lies pos of the way from cur to next
	cur, next frame
	pos       float64
	started   bool
	err       error

	// part of a frame that did not fit the caller's buffer
	spare   [FrameSize]byte
	pending []byte
}

func (s *resampler) readFrame() (frame, error) {
	var b [FrameSize]byte
	if _, err := io.ReadFull(s.src, b[:]); err != nil {
		// a trailing partial frame is dropped
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return frame{}, err
	}
	return frame{
		int16(binary.LittleEndian.Uint16(b[0:])),
		int16(binary.LittleEndian.Uint16(b[2:])),
	}, nil
}

// produce writes the next output frame into dst.
func (s *resampler) produce(dst []byte) bool {
	if !s.started {
		s.started = true
		if s.cur, s.err = s.readFrame(); s.err == nil {
			s.next, s.err = s.readFrame()
		}
	}
	for s.err == nil && s.pos >= 1 {
		s.cur = s.next
		s.next, s.err = s.readFrame()
		s.pos--
	}
	if s.err != nil {
		return false
	}

	for ch := 0; ch < 2; ch++ {
		a, b := float64(s.cur[ch]), float64(s.next[ch])
		v := int16(math.Round(a + (b-a)*s.pos))
		binary.LittleEndian.PutUint16(dst[2*ch:], uint16(v))
	}
	s.pos += s.step
	return true
}

func (s *resampler) Read(p []byte) (int, error) {
	n := copy(p, s.pending)
	s.pending = s.pending[n:]

	for len(p)-n >= FrameSize && s.produce(p[n:]) {
		n += FrameSize
	}
	if n < len(p) && len(p)-n < FrameSize && s.produce(s.spare[:]) {
		c := copy(p[n:], s.spare[:])
		s.pending = s.spare[c:]
		n += c
	}

	if n == 0 && len(p) > 0 {
		return 0, s.err
	}
	return n, nil
}

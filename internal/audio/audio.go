// Package audio provides the mono 16-bit PCM frame sources the wake word detection consumes.
package audio

import "errors"

// Frame is a block of signed 16-bit mono samples.
// A frame returned by Stream.ReadFrame is only valid until the next call.
type Frame = []int16

// Format describes the frames a stream must produce.
type Format struct {
	SampleRate  int
	FrameLength int
}

// Device is an opened audio backend that can provide input streams.
type Device interface {
	OpenStream(format Format) (Stream, error)
	Close() error
}

// Stream provides one frame per ReadFrame call, blocking until it is available.
type Stream interface {
	ReadFrame() (Frame, error)
	Close() error
}

var ErrNoInputDevice = errors.New("no audio input device available")

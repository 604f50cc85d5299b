package audio

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/zap"
)

var _ Device = &WavFile{}

// WavFile replays a 16-bit PCM wave file in an endless loop instead of recording from a microphone.
// With Realtime enabled frames are delivered at the pace they would be recorded at.
type WavFile struct {
	Path     string
	Realtime bool
	Logger   *zap.Logger
}

func (w *WavFile) Close() error {
	return nil
}

func (w *WavFile) OpenStream(format Format) (Stream, error) {
	if format.SampleRate <= 0 || format.FrameLength <= 0 {
		return nil, fmt.Errorf("invalid audio format %+v", format)
	}

	f, err := os.Open(w.Path)
	if err != nil {
		return nil, fmt.Errorf("open wave file: %w", err)
	}

	s := &wavStream{
		file:     f,
		format:   format,
		realtime: w.Realtime,
		frame:    make(Frame, format.FrameLength),
		period:   time.Duration(format.FrameLength) * time.Second / time.Duration(format.SampleRate),
	}

	err = s.rewind()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	w.Logger.Info("replaying wave file",
		zap.String("file", w.Path),
		zap.Int("sampleRate", s.sampleRate),
		zap.Int("channels", s.channels))

	return s, nil
}

type wavStream struct {
	file       *os.File
	decoder    *wav.Decoder
	format     Format
	sampleRate int
	channels   int
	realtime   bool
	period     time.Duration
	next       time.Time
	buffer     audio.IntBuffer
	frame      Frame
}

func (s *wavStream) rewind() error {
	_, err := s.file.Seek(0, io.SeekStart)
	if err != nil {
		return fmt.Errorf("rewind wave file: %w", err)
	}

	decoder := wav.NewDecoder(s.file)
	decoder.ReadInfo()
	if err := decoder.Err(); err != nil {
		return fmt.Errorf("read wave file headers: %w", err)
	}

	if decoder.SampleBitDepth() != 16 {
		return fmt.Errorf("wave data with unsupported bit depth of %d provided, expected 16", decoder.SampleBitDepth())
	}

	s.decoder = decoder
	s.sampleRate = int(decoder.SampleRate)
	s.channels = int(decoder.NumChans)

	// Rounded up so that resampling never yields less than a frame.
	samplesPerFrame := (s.format.FrameLength*s.sampleRate + s.format.SampleRate - 1) / s.format.SampleRate
	if samplesPerFrame < 1 {
		samplesPerFrame = 1
	}

	s.buffer = audio.IntBuffer{
		Format: &audio.Format{
			SampleRate:  s.sampleRate,
			NumChannels: s.channels,
		},
		SourceBitDepth: 16,
		Data:           make([]int, samplesPerFrame*s.channels),
	}

	return nil
}

// ReadFrame returns the next frame of the file and starts over at its end.
func (s *wavStream) ReadFrame() (Frame, error) {
	n, err := s.decoder.PCMBuffer(&s.buffer)
	if err != nil {
		return nil, fmt.Errorf("read pcm buffer: %w", err)
	}

	if n == 0 {
		err = s.rewind()
		if err != nil {
			return nil, err
		}

		n, err = s.decoder.PCMBuffer(&s.buffer)
		if err != nil {
			return nil, fmt.Errorf("read pcm buffer: %w", err)
		}

		if n == 0 {
			return nil, fmt.Errorf("wave file %s contains no samples", s.file.Name())
		}
	}

	samples := downmix(s.buffer.Data[:n], s.channels)
	fitFrame(s.frame, resampleInt16(samples, s.sampleRate, s.format.SampleRate))

	if s.realtime {
		s.pace()
	}

	return s.frame, nil
}

func (s *wavStream) pace() {
	now := time.Now()
	if s.next.IsZero() || now.Sub(s.next) > s.period {
		s.next = now
	}

	s.next = s.next.Add(s.period)
	time.Sleep(time.Until(s.next))
}

func (s *wavStream) Close() error {
	return s.file.Close()
}

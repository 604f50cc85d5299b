package audio

import (
	"errors"
	"fmt"
	"math"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var _ Device = &Input{}

// Input is the microphone backed by PortAudio.
type Input struct {
	Device string
	Logger *zap.Logger
}

// OpenInput initializes PortAudio.
// The returned device must be closed to terminate PortAudio again.
func OpenInput(deviceNameOrID string, logger *zap.Logger) (*Input, error) {
	err := portaudio.Initialize()
	if err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	return &Input{Device: deviceNameOrID, Logger: logger}, nil
}

// Close terminates PortAudio.
func (o *Input) Close() error {
	err := portaudio.Terminate()
	if err != nil {
		return fmt.Errorf("terminate portaudio: %w", err)
	}

	return nil
}

// OpenStream opens and starts a mono input stream that yields frames of the given format.
// When the device does not support the requested sample rate the stream records at the
// device's default sample rate and resamples each buffer.
func (o *Input) OpenStream(format Format) (Stream, error) {
	if format.SampleRate <= 0 || format.FrameLength <= 0 {
		return nil, fmt.Errorf("invalid audio format %+v", format)
	}

	device, err := inputDevice(o.Device, o.Logger)
	if err != nil {
		return nil, err
	}

	s := &inputStream{
		logger:     o.Logger,
		sampleRate: format.SampleRate,
		deviceRate: format.SampleRate,
		frame:      make(Frame, format.FrameLength),
	}

	s.buffer = make([]int16, format.FrameLength)
	s.stream, err = openInputStream(device, float64(format.SampleRate), &s.buffer)
	if err != nil {
		o.Logger.Warn("device does not support the requested sample rate, resampling",
			zap.String("device", device.Name),
			zap.Int("sampleRate", format.SampleRate),
			zap.Int("deviceSampleRate", int(device.DefaultSampleRate)),
			zap.Error(err))

		s.deviceRate = int(device.DefaultSampleRate)
		s.buffer = make([]int16, int(math.Ceil(float64(format.FrameLength)*device.DefaultSampleRate/float64(format.SampleRate))))
		s.stream, err = openInputStream(device, device.DefaultSampleRate, &s.buffer)
		if err != nil {
			return nil, fmt.Errorf("opening audio input stream: %w", err)
		}
	}

	err = s.stream.Start()
	if err != nil {
		_ = s.stream.Close()
		return nil, fmt.Errorf("starting audio input stream: %w", err)
	}

	return s, nil
}

func openInputStream(device *portaudio.DeviceInfo, sampleRate float64, buffer *[]int16) (*portaudio.Stream, error) {
	return portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: len(*buffer),
	}, buffer)
}

type inputStream struct {
	stream     *portaudio.Stream
	logger     *zap.Logger
	sampleRate int
	deviceRate int
	buffer     []int16
	frame      Frame
}

// ReadFrame blocks until the device delivered a full buffer.
// An input overflow only means that older samples were dropped, the frame is still returned.
func (s *inputStream) ReadFrame() (Frame, error) {
	err := s.stream.Read()
	if err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return nil, fmt.Errorf("read audio stream: %w", err)
		}

		s.logger.Warn("audio input overflowed - dropped samples")
	}

	fitFrame(s.frame, resampleInt16(s.buffer, s.deviceRate, s.sampleRate))

	return s.frame, nil
}

func (s *inputStream) Close() error {
	var err error

	if e := s.stream.Stop(); e != nil {
		err = multierr.Append(err, fmt.Errorf("stop input audio stream: %w", e))
	}

	if e := s.stream.Close(); e != nil {
		err = multierr.Append(err, fmt.Errorf("close input audio stream: %w", e))
	}

	return err
}

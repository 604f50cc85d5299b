package audio

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"
)

func inputDevice(deviceNameOrID string, logger *zap.Logger) (d *portaudio.DeviceInfo, err error) {
	if deviceNameOrID == "" {
		d, err = portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoInputDevice, err)
		}
	} else {
		d, err = device(deviceNameOrID)
		if err != nil {
			return nil, fmt.Errorf("get audio input device: %w", err)
		}

		if d.MaxInputChannels < 1 {
			return nil, fmt.Errorf("audio device %q is not an input device or in use by another program", d.Name)
		}
	}

	logger.Info("using audio input device",
		zap.String("device", d.Name),
		zap.Int("defaultSampleRate", int(d.DefaultSampleRate)))

	return d, nil
}

func device(device string) (*portaudio.DeviceInfo, error) {
	if device == "" {
		return nil, fmt.Errorf("no audio device ID or name specified")
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list available audio devices: %w", err)
	}

	deviceID, err := strconv.ParseInt(device, 10, 32)
	if err != nil {
		// Device name given
		for _, d := range devices {
			if strings.Contains(d.Name, device) {
				return d, nil
			}
		}

		return nil, fmt.Errorf("audio device %q not found - run the devices command to list the available ones", device)
	}

	// device ID given
	if deviceID >= int64(len(devices)) || deviceID < 0 {
		return nil, fmt.Errorf("audio device %d not found - please specify the ID of an existing device", deviceID)
	}

	return devices[deviceID], nil
}

// PrintInputDevices writes a table of the audio devices that can record audio.
// PortAudio must have been initialized.
func PrintInputDevices(w io.Writer) error {
	devices, err := portaudio.Devices()
	if err != nil {
		return fmt.Errorf("get available audio devices: %w", err)
	}

	format := "%2s  %-55s  %2s  %10s\n"
	fmt.Fprintf(w, format, "ID", "NAME", "IN", "SAMPLERATE")
	for i, device := range devices {
		if device.MaxInputChannels < 1 {
			continue
		}
		fmt.Fprintf(w, "%2d  %-55s  %2d  %10d\n", i, device.Name, device.MaxInputChannels, int(device.DefaultSampleRate))
	}

	return nil
}

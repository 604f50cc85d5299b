package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	SurfaceTray = "tray"
	SurfaceHTTP = "http"
)

type Configuration struct {
	AccessKey    string   `json:"accessKey,omitempty"`
	KeywordPath  string   `json:"keywordPath,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	Sensitivity  float32  `json:"sensitivity,omitempty"`
	InputDevice  string   `json:"inputDevice,omitempty"`
	InputFile    string   `json:"inputFile,omitempty"`
	SampleRate   int      `json:"sampleRate,omitempty"`
	FrameLength  int      `json:"frameLength,omitempty"`
	Cooldown     Duration `json:"cooldown,omitempty"`
	IdleInterval Duration `json:"idleInterval,omitempty"`
	ErrorBackoff Duration `json:"errorBackoff,omitempty"`
	// MaxConsecutiveFailures is the number of failed detection iterations in a row after which EscalatedBackoff applies.
	MaxConsecutiveFailures int       `json:"maxConsecutiveFailures,omitempty"`
	EscalatedBackoff       Duration  `json:"escalatedBackoff,omitempty"`
	WatchdogInterval       Duration  `json:"watchdogInterval,omitempty"`
	HeartbeatTimeout       Duration  `json:"heartbeatTimeout,omitempty"`
	Assistant              Assistant `json:"assistant,omitempty"`
	Surface                string    `json:"surface,omitempty"`
	Listen                 string    `json:"listen,omitempty"`
	TLS                    TLS       `json:"tls,omitempty"`
	MDNS                   MDNS      `json:"mdns,omitempty"`
}

// Assistant describes the process that is launched when the wake word is heard.
type Assistant struct {
	Entry          string `json:"entry,omitempty"`
	Interpreter    string `json:"interpreter,omitempty"`
	SingleInstance bool   `json:"singleInstance,omitempty"`
}

type TLS struct {
	Enabled bool   `json:"enabled,omitempty"`
	Cert    string `json:"cert,omitempty"`
	Key     string `json:"key,omitempty"`
}

type MDNS struct {
	Enabled bool   `json:"enabled,omitempty"`
	Name    string `json:"name,omitempty"`
	Service string `json:"service,omitempty"`
	Domain  string `json:"domain,omitempty"`
}

// Defaults returns the configuration used when neither a file nor flags override a value.
func Defaults() Configuration {
	return Configuration{
		Keywords:               []string{"jarvis", "computer", "alexa", "hey google"},
		Sensitivity:            0.5,
		Cooldown:               Duration{2 * time.Second},
		IdleInterval:           Duration{100 * time.Millisecond},
		ErrorBackoff:           Duration{500 * time.Millisecond},
		MaxConsecutiveFailures: 5,
		EscalatedBackoff:       Duration{5 * time.Second},
		WatchdogInterval:       Duration{5 * time.Second},
		HeartbeatTimeout:       Duration{30 * time.Second},
		Assistant: Assistant{
			Entry: "assistant",
		},
		Surface: SurfaceTray,
		Listen:  "127.0.0.1:8765",
		MDNS: MDNS{
			Service: "_wakelauncher._tcp",
			Domain:  "local.",
		},
	}
}

// Validate reports the first invalid setting.
func (c *Configuration) Validate() error {
	if c.Sensitivity < 0 || c.Sensitivity > 1 {
		return fmt.Errorf("sensitivity must be within [0,1] but was %v", c.Sensitivity)
	}
	if c.SampleRate < 0 {
		return fmt.Errorf("negative sample rate %d", c.SampleRate)
	}
	if c.FrameLength < 0 {
		return fmt.Errorf("negative frame length %d", c.FrameLength)
	}
	for name, d := range map[string]Duration{
		"cooldown":         c.Cooldown,
		"idleInterval":     c.IdleInterval,
		"errorBackoff":     c.ErrorBackoff,
		"escalatedBackoff": c.EscalatedBackoff,
		"watchdogInterval": c.WatchdogInterval,
		"heartbeatTimeout": c.HeartbeatTimeout,
	} {
		if d.Duration < 0 {
			return fmt.Errorf("%s must not be negative but was %s", name, d)
		}
	}
	if c.IdleInterval.Duration == 0 {
		return fmt.Errorf("idleInterval must be greater than zero")
	}
	if c.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("maxConsecutiveFailures must not be negative but was %d", c.MaxConsecutiveFailures)
	}
	if c.HeartbeatTimeout.Duration != 0 && c.HeartbeatTimeout.Duration < c.WatchdogInterval.Duration {
		return fmt.Errorf("heartbeatTimeout %s must not be shorter than watchdogInterval %s", c.HeartbeatTimeout, c.WatchdogInterval)
	}
	if strings.TrimSpace(c.Assistant.Entry) == "" {
		return fmt.Errorf("no assistant entry point configured")
	}
	switch c.Surface {
	case SurfaceTray:
	case SurfaceHTTP:
		if c.Listen == "" {
			return fmt.Errorf("surface %q requires a listen address", c.Surface)
		}
	default:
		return fmt.Errorf("unsupported surface %q, supported surfaces are %s and %s", c.Surface, SurfaceTray, SurfaceHTTP)
	}
	if c.TLS.Cert != "" && c.TLS.Key == "" || c.TLS.Cert == "" && c.TLS.Key != "" {
		return fmt.Errorf("tls cert and key must be specified together")
	}
	return nil
}

// Duration accepts both Go duration strings ("2s") and nanoseconds within YAML/JSON documents.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}

	return nil
}

// Package wakeword adapts keyword spotting engines to the frame-by-frame interface the detector consumes.
package wakeword

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// NoMatch is returned by Spotter.Process when the frame did not complete a keyword.
const NoMatch = -1

// Spotter detects keywords within a continuous stream of audio frames.
// Implementations keep internal state between frames, frames must therefore be fed in order.
type Spotter interface {
	// SampleRate returns the sample rate the frames must be recorded with.
	SampleRate() int
	// FrameLength returns the number of samples each frame must contain.
	FrameLength() int
	// Process returns the index of the detected keyword or NoMatch.
	Process(frame []int16) (int, error)
	// Release frees the engine's resources.
	Release() error
}

// EngineInitError is returned when a keyword spotting engine cannot be initialized.
type EngineInitError struct {
	Engine string
	Err    error
}

func (e *EngineInitError) Error() string {
	return fmt.Sprintf("initialize %s keyword engine: %s", e.Engine, e.Err)
}

func (e *EngineInitError) Unwrap() error {
	return e.Err
}

// KeywordSpec specifies the keywords to listen for.
// A custom model file takes precedence over the built-in keywords if it exists.
type KeywordSpec struct {
	ModelPath   string
	Keywords    []string
	Sensitivity float32
}

// Keywords is the resolved set of keywords an engine is initialized with.
// Exactly one of ModelPaths and BuiltIn is populated.
type Keywords struct {
	ModelPaths []string
	BuiltIn    []string
	Names      []string
}

// Resolve decides whether the custom model or the built-in keywords are used.
func (s KeywordSpec) Resolve() (Keywords, error) {
	if s.ModelPath != "" {
		_, err := os.Stat(s.ModelPath)
		if err == nil {
			return Keywords{
				ModelPaths: []string{s.ModelPath},
				Names:      []string{modelName(s.ModelPath)},
			}, nil
		}
	}

	builtIn := make([]string, 0, len(s.Keywords))
	for _, k := range s.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			builtIn = append(builtIn, k)
		}
	}

	if len(builtIn) == 0 {
		if s.ModelPath != "" {
			return Keywords{}, fmt.Errorf("keyword model %s does not exist and no built-in keywords are configured", s.ModelPath)
		}
		return Keywords{}, fmt.Errorf("no keywords configured")
	}

	return Keywords{BuiltIn: builtIn, Names: builtIn}, nil
}

// Name returns the human-readable name of the keyword with the given index.
func (k Keywords) Name(index int) string {
	if index < 0 || index >= len(k.Names) {
		return fmt.Sprintf("keyword #%d", index)
	}

	return k.Names[index]
}

// modelName derives a keyword name from a model file such as HEY-JARVIS_en_windows_v4_0_0.ppn.
func modelName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.Index(name, "_"); i > 0 {
		name = name[:i]
	}

	return strings.ToLower(strings.ReplaceAll(name, "-", " "))
}

package wakeword

import (
	"errors"
	"fmt"
	"sort"

	porcupine "github.com/Picovoice/porcupine/binding/go/v3"
)

var _ Spotter = &Porcupine{}

// Porcupine spots keywords using the Picovoice Porcupine engine.
type Porcupine struct {
	engine   *porcupine.Porcupine
	keywords Keywords
}

// NewPorcupine initializes the Porcupine engine for the given keywords.
// All failures are returned as *EngineInitError.
func NewPorcupine(accessKey string, spec KeywordSpec) (*Porcupine, error) {
	if accessKey == "" {
		return nil, &EngineInitError{Engine: "porcupine", Err: errors.New("no access key provided")}
	}

	keywords, err := spec.Resolve()
	if err != nil {
		return nil, &EngineInitError{Engine: "porcupine", Err: err}
	}

	engine := &porcupine.Porcupine{
		AccessKey:    accessKey,
		KeywordPaths: keywords.ModelPaths,
	}

	for _, k := range keywords.BuiltIn {
		keyword := porcupine.BuiltInKeyword(k)
		if !isBuiltIn(keyword) {
			return nil, &EngineInitError{
				Engine: "porcupine",
				Err:    fmt.Errorf("unsupported built-in keyword %q, supported keywords are %v", k, BuiltInKeywords()),
			}
		}
		engine.BuiltInKeywords = append(engine.BuiltInKeywords, keyword)
	}

	if spec.Sensitivity > 0 {
		n := len(keywords.Names)
		engine.Sensitivities = make([]float32, n)
		for i := range engine.Sensitivities {
			engine.Sensitivities[i] = spec.Sensitivity
		}
	}

	err = engine.Init()
	if err != nil {
		return nil, &EngineInitError{Engine: "porcupine", Err: err}
	}

	return &Porcupine{engine: engine, keywords: keywords}, nil
}

func (p *Porcupine) SampleRate() int {
	return porcupine.SampleRate
}

func (p *Porcupine) FrameLength() int {
	return porcupine.FrameLength
}

func (p *Porcupine) Process(frame []int16) (int, error) {
	index, err := p.engine.Process(frame)
	if err != nil {
		return NoMatch, fmt.Errorf("porcupine: %w", err)
	}

	if index < 0 {
		return NoMatch, nil
	}

	return index, nil
}

// Keyword returns the name of the keyword with the given index.
func (p *Porcupine) Keyword(index int) string {
	return p.keywords.Name(index)
}

func (p *Porcupine) Release() error {
	err := p.engine.Delete()
	if err != nil {
		return fmt.Errorf("delete porcupine engine: %w", err)
	}

	return nil
}

// BuiltInKeywords lists the keywords Porcupine ships with.
func BuiltInKeywords() []string {
	keywords := make([]string, 0, len(porcupine.BuiltInKeywords))
	for _, k := range porcupine.BuiltInKeywords {
		keywords = append(keywords, string(k))
	}

	sort.Strings(keywords)

	return keywords
}

func isBuiltIn(keyword porcupine.BuiltInKeyword) bool {
	for _, k := range porcupine.BuiltInKeywords {
		if k == keyword {
			return true
		}
	}

	return false
}

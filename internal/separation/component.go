package separation

import (
	"fmt"

	"walkeryt/internal/config"
)

// Component selects which stem is kept.
type Component string

const (
	Vocals       Component = "vocals"
	Instrumental Component = "instrumental"
)

// ParseComponent accepts the same names and aliases as the keep setting.
func ParseComponent(value string) (Component, error) {
	switch config.NormalizeKeep(value) {
	case "vocals":
		return Vocals, nil
	case "instrumental":
		return Instrumental, nil
	default:
		return "", fmt.Errorf("unknown component %q (want vocals or instrumental)", value)
	}
}

// Stem is the demucs output file name for the component.
func (c Component) Stem() string {
	if c == Vocals {
		return "vocals.wav"
	}
	return "no_vocals.wav"
}

// Complement is the stem that is discarded.
func (c Component) Complement() string {
	if c == Vocals {
		return "no_vocals.wav"
	}
	return "vocals.wav"
}

// Label is the short name used in progress messages.
func (c Component) Label() string {
	if c == Vocals {
		return "vocals"
	}
	return "instrumental"
}

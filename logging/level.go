package logging

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/atomic"
	"go.uber.org/zap/zapcore"
)

// Level orders log entries by severity.
type Level int

// Supported levels, from most to least verbose.
const (
	DEBUG Level = iota - 1
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "Debug",
	INFO:  "Info",
	WARN:  "Warn",
	ERROR: "Error",
}

func (level Level) String() string {
	if name, ok := levelNames[level]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(level))
}

// LevelFromString parses debug, info, warn (or warning) and error, ignoring case.
func LevelFromString(inp string) (Level, error) {
	lower := strings.ToLower(inp)
	if lower == "warning" {
		return WARN, nil
	}
	for level, name := range levelNames {
		if strings.ToLower(name) == lower {
			return level, nil
		}
	}
	return DEBUG, fmt.Errorf("unknown log level: %q", inp)
}

// AsZap maps the level onto zap's levels, which share the same ordering.
func (level Level) AsZap() zapcore.Level {
	return zapcore.Level(level)
}

// MarshalJSON writes the lowercase level name.
func (level Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.ToLower(level.String()))
}

// UnmarshalText lets config decoders accept names such as "debug".
func (level *Level) UnmarshalText(text []byte) error {
	parsed, err := LevelFromString(string(text))
	if err != nil {
		return err
	}
	*level = parsed
	return nil
}

// AtomicLevel is a Level shared between goroutines.
type AtomicLevel struct {
	val *atomic.Int32
}

// NewAtomicLevelAt returns an AtomicLevel holding initLevel.
func NewAtomicLevelAt(initLevel Level) AtomicLevel {
	return AtomicLevel{val: atomic.NewInt32(int32(initLevel))}
}

// Set changes the level.
func (level AtomicLevel) Set(newLevel Level) {
	level.val.Store(int32(newLevel))
}

// Get returns the level.
func (level AtomicLevel) Get() Level {
	return Level(level.val.Load())
}

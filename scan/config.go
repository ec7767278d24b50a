package scan

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Default engine constants.
const (
	DefaultWindow      = 20
	DefaultFanout      = 8
	DefaultObjective   = "tickpack"
	DefaultListener    = "@a[tag=musik_play]"
	DefaultEntryName   = "play"
	DefaultStepPeriod  = 50 * time.Millisecond
	eagerFlushWindows  = 6
	eagerFlushLeaves   = 3
	minimumFanout      = 2
	defaultSignalStart = 1
)

// Config holds scan tuning, loadable from a YAML file and overridable from
// TICKPACK_* environment variables.
type Config struct {
	Window         int           `yaml:"window" env:"TICKPACK_WINDOW"`
	Fanout         int           `yaml:"fanout" env:"TICKPACK_FANOUT"`
	Objective      string        `yaml:"objective" env:"TICKPACK_OBJECTIVE"`
	ListenerTag    string        `yaml:"listener_selector" env:"TICKPACK_LISTENER"`
	EntryName      string        `yaml:"entry_name" env:"TICKPACK_ENTRY_NAME"`
	StepPeriod     time.Duration `yaml:"step_period" env:"TICKPACK_STEP_PERIOD"`
	BuiltinSounds  []string      `yaml:"builtin_sounds" env:"TICKPACK_BUILTIN_SOUNDS" envSeparator:","`
	CustomPrefixes []string      `yaml:"custom_sound_prefixes" env:"TICKPACK_CUSTOM_PREFIXES" envSeparator:","`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Window:         DefaultWindow,
		Fanout:         DefaultFanout,
		Objective:      DefaultObjective,
		ListenerTag:    DefaultListener,
		EntryName:      DefaultEntryName,
		StepPeriod:     DefaultStepPeriod,
		CustomPrefixes: append([]string(nil), DefaultCustomSoundPrefixes...),
	}
}

// LoadConfig reads a YAML config file over the defaults.
// Unknown keys are rejected so typos surface as errors.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading scan config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing scan config: %w", err)
	}
	return cfg, nil
}

// identifierPattern matches names usable as scoreboard objectives and function names.
var identifierPattern = regexp.MustCompile(`^[a-z0-9_.\-]+$`)

// Validate checks ranges and identifier shapes.
func (c Config) Validate() error {
	if c.Window < 1 {
		return fmt.Errorf("window must be positive, got %d", c.Window)
	}
	if c.Fanout < minimumFanout {
		return fmt.Errorf("fanout must be at least %d, got %d", minimumFanout, c.Fanout)
	}
	if !identifierPattern.MatchString(c.Objective) {
		return fmt.Errorf("objective %q is not a valid identifier", c.Objective)
	}
	if !identifierPattern.MatchString(c.EntryName) {
		return fmt.Errorf("entry_name %q is not a valid identifier", c.EntryName)
	}
	if c.ListenerTag == "" {
		return fmt.Errorf("listener_selector must not be empty")
	}
	if c.StepPeriod <= 0 {
		return fmt.Errorf("step_period must be positive, got %s", c.StepPeriod)
	}
	return nil
}

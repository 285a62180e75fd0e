// Package config loads and validates the YAML experiment description. Every
// construction fault a bad file can cause is surfaced here, before the
// control loop starts.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"operantcore/internal/reinforce"
	"operantcore/internal/schedule"
	"operantcore/pkg/domain"
)

// Duration is a time.Duration that unmarshals from YAML strings like "90s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full experiment description.
type Config struct {
	Name    string        `yaml:"name"`
	Subject SubjectConfig `yaml:"subject"`

	// LightSchedule and SessionSchedule are lists of ["HH:MM","HH:MM"]
	// half-open windows; an empty list never gates.
	LightSchedule   [][2]string `yaml:"light_schedule"`
	SessionSchedule [][2]string `yaml:"session_schedule"`

	// SessionDuration bounds a running session; SessionInterval spaces
	// consecutive sessions. Zero disables either bound.
	SessionDuration Duration `yaml:"session_duration"`
	SessionInterval Duration `yaml:"session_interval"`
	// SessionMaxTrials bounds the trial count per session.
	SessionMaxTrials int `yaml:"session_max_trials"`

	PollInterval Duration `yaml:"poll_interval"`
	NumSessions  int      `yaml:"num_sessions"`

	Behavior BehaviorConfig `yaml:"behavior"`
	Stimuli  StimuliConfig  `yaml:"stimuli"`
	Blocks   []BlockConfig  `yaml:"blocks"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Events  EventsConfig  `yaml:"events"`
}

// SubjectConfig names the subject and its trial datastore.
type SubjectConfig struct {
	Name      string          `yaml:"name"`
	Datastore DatastoreConfig `yaml:"datastore"`
	// Fields overrides the default trial-record field list.
	Fields []string `yaml:"fields"`
}

// DatastoreConfig selects the trial store backend.
type DatastoreConfig struct {
	// Driver is "csv", "sqlite" or "postgres"; empty means csv.
	Driver string `yaml:"driver"`
	// DSN is the file path for csv/sqlite and the connection string for
	// postgres.
	DSN string `yaml:"dsn"`
	// Strict aborts the session on a persistence failure instead of
	// reporting and continuing.
	Strict bool `yaml:"strict"`
}

// BehaviorConfig selects and parameterizes the behavior hook set.
type BehaviorConfig struct {
	// Type names the behavior; "go_no_go" is the only built-in.
	Type             string   `yaml:"type"`
	StimulusDuration Duration `yaml:"stimulus_duration"`
	RewardDuration   Duration `yaml:"reward_duration"`
	PunishDuration   Duration `yaml:"punish_duration"`
	StartTimeout     Duration `yaml:"start_timeout"`
}

// StimuliConfig selects the stimulus bank backend.
type StimuliConfig struct {
	// Driver is "fs", "memory" or "s3"; empty means fs.
	Driver    string `yaml:"driver"`
	Root      string `yaml:"root"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	CacheDir  string `yaml:"cache_dir"`
}

// BlockConfig describes one block of the session.
type BlockConfig struct {
	// Queue is "random", "fixed" or "staircase"; empty means fixed.
	Queue string `yaml:"queue"`
	// Repetitions is the per-condition repeat count for fixed queues.
	Repetitions int  `yaml:"repetitions"`
	Shuffle     bool `yaml:"shuffle"`
	// MaxTrials bounds random queues and, via a count scheduler, any block.
	MaxTrials int `yaml:"max_trials"`

	Reinforcement ReinforcementConfig `yaml:"reinforcement"`
	Conditions    []ConditionConfig   `yaml:"conditions"`
	Staircase     *StaircaseConfig    `yaml:"staircase"`
}

// ConditionConfig describes one stimulus category.
type ConditionConfig struct {
	Name     string  `yaml:"name"`
	Response bool    `yaml:"response"`
	Rewarded bool    `yaml:"rewarded"`
	Punished bool    `yaml:"punished"`
	Content  string  `yaml:"content"`
	Weight   float64 `yaml:"weight"`
}

// Condition converts to the domain value type.
func (c ConditionConfig) Condition() domain.Condition {
	return domain.Condition{
		Name:     c.Name,
		Response: c.Response,
		Rewarded: c.Rewarded,
		Punished: c.Punished,
		Content:  c.Content,
	}
}

// ReinforcementConfig names a reinforcement schedule.
type ReinforcementConfig struct {
	// Schedule is "continuous", "fixed_ratio", "variable_ratio" or
	// "percent"; empty means continuous.
	Schedule string  `yaml:"schedule"`
	Ratio    int     `yaml:"ratio"`
	Percent  float64 `yaml:"percent"`
}

// Params converts to the reinforce parameter set.
func (c ReinforcementConfig) Params() reinforce.Params {
	return reinforce.Params{Ratio: c.Ratio, Percent: c.Percent}
}

// StaircaseConfig parameterizes an adaptive block.
type StaircaseConfig struct {
	Start     float64  `yaml:"start"`
	Up        int      `yaml:"up"`
	Down      int      `yaml:"down"`
	Step      float64  `yaml:"step"`
	Min       *float64 `yaml:"min"`
	Max       *float64 `yaml:"max"`
	TrMin     int      `yaml:"tr_min"`
	TrMax     int      `yaml:"tr_max"`
	Reversals int      `yaml:"reversals"`
}

// LogConfig controls operational logging.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error"; empty means info.
	Level string `yaml:"level"`
}

// SlogLevel maps the configured level to slog.
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MetricsConfig controls the optional prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address for the /metrics endpoint; empty disables it.
	Listen string `yaml:"listen"`
}

// EventsConfig controls the event log sink.
type EventsConfig struct {
	// File is the TSV event log path; empty disables the file sink.
	File string `yaml:"file"`
}

// Load reads, decodes and validates the config at path. Unknown YAML keys
// are rejected so typos surface instead of silently defaulting.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, domain.NewConfigError("config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config for construction faults.
func (c *Config) Validate() error {
	if c.Name == "" {
		return domain.NewConfigError("name", fmt.Errorf("required"))
	}
	if c.Subject.Name == "" {
		return domain.NewConfigError("subject.name", fmt.Errorf("required"))
	}
	switch c.Subject.Datastore.Driver {
	case "", "csv", "sqlite", "postgres":
	default:
		return domain.NewConfigError("subject.datastore.driver",
			fmt.Errorf("unknown driver %q", c.Subject.Datastore.Driver))
	}
	switch c.Stimuli.Driver {
	case "", "fs", "memory", "s3":
	default:
		return domain.NewConfigError("stimuli.driver",
			fmt.Errorf("unknown driver %q", c.Stimuli.Driver))
	}
	switch c.Behavior.Type {
	case "", "go_no_go":
	default:
		return domain.NewConfigError("behavior.type",
			fmt.Errorf("unknown behavior %q", c.Behavior.Type))
	}
	if c.Behavior.StimulusDuration <= 0 {
		return domain.NewConfigError("behavior.stimulus_duration", fmt.Errorf("must be positive"))
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return domain.NewConfigError("log.level", fmt.Errorf("unknown level %q", c.Log.Level))
	}
	if _, err := schedule.ParseWindows(c.LightSchedule); err != nil {
		return err
	}
	if _, err := schedule.ParseWindows(c.SessionSchedule); err != nil {
		return err
	}
	if len(c.Blocks) == 0 {
		return domain.NewConfigError("blocks", fmt.Errorf("at least one block required"))
	}
	for i, b := range c.Blocks {
		if err := b.validate(i); err != nil {
			return err
		}
	}
	return nil
}

func (b BlockConfig) validate(i int) error {
	field := func(name string) string { return fmt.Sprintf("blocks[%d].%s", i, name) }
	if len(b.Conditions) == 0 {
		return domain.NewConfigError(field("conditions"), fmt.Errorf("at least one condition required"))
	}
	for j, cond := range b.Conditions {
		if cond.Name == "" {
			return domain.NewConfigError(field(fmt.Sprintf("conditions[%d].name", j)), fmt.Errorf("required"))
		}
		if cond.Weight < 0 {
			return domain.NewConfigError(field(fmt.Sprintf("conditions[%d].weight", j)), fmt.Errorf("must not be negative"))
		}
	}
	switch b.Queue {
	case "", "fixed":
	case "random":
		if b.MaxTrials <= 0 {
			return domain.NewConfigError(field("max_trials"), fmt.Errorf("random queues need a positive draw bound"))
		}
	case "staircase":
		if b.Staircase == nil {
			return domain.NewConfigError(field("staircase"), fmt.Errorf("staircase parameters required"))
		}
		if b.Staircase.Step <= 0 {
			return domain.NewConfigError(field("staircase.step"), fmt.Errorf("must be positive"))
		}
		if len(b.Conditions) != 1 {
			return domain.NewConfigError(field("conditions"), fmt.Errorf("staircase blocks take exactly one condition"))
		}
	default:
		return domain.NewConfigError(field("queue"), fmt.Errorf("unknown queue %q", b.Queue))
	}
	if _, err := reinforce.New(b.Reinforcement.Schedule, b.Reinforcement.Params()); err != nil {
		return err
	}
	return nil
}

// Weights extracts the per-condition weights, or nil when none are set.
func (b BlockConfig) Weights() []float64 {
	any := false
	weights := make([]float64, len(b.Conditions))
	for i, cond := range b.Conditions {
		weights[i] = cond.Weight
		if cond.Weight != 0 {
			any = true
		}
	}
	if !any {
		return nil
	}
	return weights
}

// DomainConditions converts the block's condition list.
func (b BlockConfig) DomainConditions() []domain.Condition {
	conds := make([]domain.Condition, len(b.Conditions))
	for i, cond := range b.Conditions {
		conds[i] = cond.Condition()
	}
	return conds
}

package uow

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// QueueConfig is a top-level block for background queue configuration.
type QueueConfig struct {
	Capacity int `yaml:"capacity"`
}

// DestinationConfig is a top-level block for the output stream
// configuration. Exactly one destination may be set; with none, the
// pipeline writes to stdout.
type DestinationConfig struct {
	Stdout bool   `yaml:"stdout"`
	Path   string `yaml:"path"`
	Net    *struct {
		Host               string        `yaml:"host"`
		Port               int           `yaml:"port"`
		Network            string        `yaml:"network"`
		DialTimeout        time.Duration `yaml:"dial_timeout"`
		WriteTimeout       time.Duration `yaml:"write_timeout"`
		InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	} `yaml:"net"`
}

// FormatConfig is a top-level block for format configuration. Exactly
// one format may be set; with none, EMF with defaults is used.
type FormatConfig struct {
	EMF *struct {
		Namespace  string     `yaml:"namespace"`
		Dimensions [][]string `yaml:"dimensions"`
		Sampling   bool       `yaml:"sampling"`
	} `yaml:"emf"`
	Msgpack *struct {
		Tag              string `yaml:"tag"`
		CoarseTimestamps bool   `yaml:"coarse_timestamps"`
	} `yaml:"msgpack"`
	CBOR *struct{} `yaml:"cbor"`
}

// SamplerConfig is a top-level block for sampler configuration. At
// most one sampler may be set.
type SamplerConfig struct {
	Fraction      float64 `yaml:"fraction"`
	Congressional *struct {
		TargetRate float64       `yaml:"target_rate"`
		Window     time.Duration `yaml:"window"`
	} `yaml:"congressional"`
}

// Config describes a complete emission pipeline: queue, destination,
// format, and optional sampler.
type Config struct {
	Queue       *QueueConfig       `yaml:"queue"`
	Destination *DestinationConfig `yaml:"destination"`
	Format      *FormatConfig      `yaml:"format"`
	Sampler     *SamplerConfig     `yaml:"sampler"`
}

// LoadConfig parses a Config from a YAML file on disk.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: error reading config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a Config from YAML bytes.
func ParseConfig(data []byte) (*Config, error) {
	var cfg *Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: error parsing config: %w", err)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate the contents of the configuration. Returns an error if
// validation failed; nil otherwise.
func (c *Config) validate() error {
	if d := c.Destination; d != nil {
		set := 0
		if d.Stdout {
			set++
		}
		if d.Path != "" {
			set++
		}
		if d.Net != nil {
			set++
			if d.Net.Host == "" {
				return fmt.Errorf("config: net destination requires a host")
			}
		}
		if set > 1 {
			return fmt.Errorf("config: at most one destination may be set")
		}
	}

	if f := c.Format; f != nil {
		set := 0
		if f.EMF != nil {
			set++
		}
		if f.Msgpack != nil {
			set++
		}
		if f.CBOR != nil {
			set++
		}
		if set > 1 {
			return fmt.Errorf("config: at most one format may be set")
		}
	}

	if s := c.Sampler; s != nil {
		if s.Fraction < 0 || s.Fraction > 1 {
			return fmt.Errorf("config: sampler fraction must be in (0, 1]")
		}
		if s.Fraction > 0 && s.Congressional != nil {
			return fmt.Errorf("config: at most one sampler may be set")
		}
	}

	return nil
}

// Attach builds the configured pipeline, installs it as the
// process-wide sink, and returns the handle that drains it on Close.
func (c *Config) Attach() (*AttachHandle, error) {
	w, err := c.buildWriter()
	if err != nil {
		return nil, err
	}

	format := c.buildFormat()
	if sampler := c.buildSampler(); sampler != nil {
		format = sampler.Wrap(format)
	}

	var opts *QueueOptions
	if c.Queue != nil {
		opts = &QueueOptions{Capacity: c.Queue.Capacity}
	}

	return AttachToStream(format, w, opts), nil
}

func (c *Config) buildWriter() (io.Writer, error) {
	d := c.Destination
	switch {
	case d == nil || d.Stdout, d != nil && d.Path == "" && d.Net == nil:
		return os.Stdout, nil
	case d.Path != "":
		f, err := os.OpenFile(d.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("config: error opening destination: %w", err)
		}
		return f, nil
	default:
		return NewNetWriter(d.Net.Host, &NetWriterOptions{
			Network:            d.Net.Network,
			Port:               d.Net.Port,
			DialTimeout:        d.Net.DialTimeout,
			WriteTimeout:       d.Net.WriteTimeout,
			InsecureSkipVerify: d.Net.InsecureSkipVerify,
			SkipEagerDial:      true,
		})
	}
}

func (c *Config) buildFormat() Format {
	f := c.Format
	switch {
	case f == nil || f.EMF != nil:
		opts := DefaultEMFOptions()
		if f != nil && f.EMF != nil {
			opts = &EMFOptions{
				Namespace:  f.EMF.Namespace,
				Dimensions: f.EMF.Dimensions,
				Sampling:   f.EMF.Sampling,
			}
		}
		return NewEMFFormat(opts)
	case f.Msgpack != nil:
		return NewMsgpackFormat(&MsgpackOptions{
			Tag:              f.Msgpack.Tag,
			CoarseTimestamps: f.Msgpack.CoarseTimestamps,
		})
	default:
		return NewCBORFormat()
	}
}

func (c *Config) buildSampler() Sampler {
	s := c.Sampler
	switch {
	case s == nil:
		return nil
	case s.Fraction > 0 && s.Fraction < 1:
		return NewFixedFractionSampler(s.Fraction)
	case s.Congressional != nil:
		return NewCongressionalSampler(&CongressionalOptions{
			TargetRate: s.Congressional.TargetRate,
			Window:     s.Congressional.Window,
		})
	default:
		return nil
	}
}

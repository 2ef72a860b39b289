package phraseflow

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for zero-valued config fields.
const (
	DefaultFreeCharacterLimit = 2000
	DefaultWindow             = 24 * time.Hour
	DefaultPollInterval       = time.Second
)

// Config is the top-level quota and effect configuration.
type Config struct {
	FreeCharacterLimit int                `yaml:"free_character_limit"`
	Window             Duration           `yaml:"window"`
	RequestTimeout     Duration           `yaml:"request_timeout"`
	PollInterval       Duration           `yaml:"poll_interval"`
	Tiers              []SubscriptionTier `yaml:"tiers"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "24h".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("phraseflow: config: duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("phraseflow: config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// LoadConfig reads and parses a YAML config file.
// Environment variables in the format ${VAR} are expanded before parsing.
// Zero-valued fields receive defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("phraseflow: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("phraseflow: parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.FreeCharacterLimit == 0 {
		c.FreeCharacterLimit = DefaultFreeCharacterLimit
	}
	if c.Window == 0 {
		c.Window = Duration(DefaultWindow)
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = Duration(DefaultRequestTimeout)
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(DefaultPollInterval)
	}
}

// Validate checks the config for required fields and consistency.
func (c Config) Validate() error {
	if c.FreeCharacterLimit < 0 {
		return fmt.Errorf("phraseflow: config: free_character_limit must be non-negative")
	}
	if c.Window < 0 {
		return fmt.Errorf("phraseflow: config: window must not be negative")
	}

	ids := make(map[string]bool, len(c.Tiers))
	for i, tier := range c.Tiers {
		if tier.ProductID == "" {
			return fmt.Errorf("phraseflow: config: tiers[%d]: product_id is required", i)
		}
		if ids[tier.ProductID] {
			return fmt.Errorf("phraseflow: config: duplicate product_id %q", tier.ProductID)
		}
		ids[tier.ProductID] = true

		if tier.DailyCharacterLimit <= 0 && !tier.Unlimited {
			return fmt.Errorf("phraseflow: config: tiers[%d] (%s): daily_character_limit must be positive", i, tier.ProductID)
		}
	}

	return nil
}

// Tier returns the tier with the given product id, if configured.
func (c Config) Tier(productID string) (SubscriptionTier, bool) {
	for _, t := range c.Tiers {
		if t.ProductID == productID {
			return t, true
		}
	}
	return SubscriptionTier{}, false
}

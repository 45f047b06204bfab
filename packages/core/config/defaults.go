package config

// Run orders.
const (
	OrderRandom   = "random"
	OrderDeclared = "declared"
	OrderAlpha    = "alpha"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Order:      OrderRandom,
		Timeout:    30000, // 30 seconds
		Retries:    0,
		RetryDelay: 1000, // 1 second
		Bail:       BoolPtr(false),
		Verbose:    BoolPtr(false),
		NoColor:    BoolPtr(false),
		Log:        &LogConfig{Level: "warn", Format: "console"},
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.Order == defaults.Order &&
		c.Seed == defaults.Seed &&
		c.Timeout == defaults.Timeout &&
		c.Retries == defaults.Retries &&
		c.RetryDelay == defaults.RetryDelay &&
		c.Rate == defaults.Rate &&
		c.GetBail() == defaults.GetBail() &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor() &&
		c.OutputDir == defaults.OutputDir &&
		c.EnvFile == defaults.EnvFile &&
		len(c.Tags) == 0 &&
		len(c.Variables) == 0
}

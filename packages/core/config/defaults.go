package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:         30000, // 30 seconds
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    10,
		ValidateSSL:     BoolPtr(true),
		SchemaDir:       "schemas",
		Output:          "console",
		Parallel:        BoolPtr(false),
		Concurrency:     5,
		Bail:            BoolPtr(false),
		Verbose:         BoolPtr(false),
		NoColor:         BoolPtr(false),
	}
}

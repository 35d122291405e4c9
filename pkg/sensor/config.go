package sensor

// MemoryTier selects a capture profile by available memory. Devices
// without high-capacity memory run reduced resolution and quality with a
// single frame buffer.
type MemoryTier int

const (
	// TierHigh is the profile for devices with external frame memory.
	TierHigh MemoryTier = iota

	// TierLow is the fallback profile for internal memory only.
	TierLow
)

func (t MemoryTier) String() string {
	if t == TierHigh {
		return "high"
	}
	return "low"
}

// Config holds the capture profile applied at sensor initialization.
type Config struct {
	Width   int `json:"width"`   // Frame width in pixels
	Height  int `json:"height"`  // Frame height in pixels
	Quality int `json:"quality"` // JPEG quality 1-100
	Buffers int `json:"buffers"` // Frame buffer pool depth
}

// ConfigForTier returns the capture profile for a memory tier.
func ConfigForTier(tier MemoryTier) Config {
	if tier == TierHigh {
		return Config{
			Width:   640,
			Height:  480,
			Quality: 85,
			Buffers: 2,
		}
	}
	return Config{
		Width:   320,
		Height:  240,
		Quality: 70,
		Buffers: 1,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Width < 160 || c.Width > 1920 {
		errors = append(errors, "width must be between 160 and 1920")
	}
	if c.Height < 120 || c.Height > 1080 {
		errors = append(errors, "height must be between 120 and 1080")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.Buffers < 1 || c.Buffers > 2 {
		errors = append(errors, "buffers must be 1 or 2")
	}

	return errors
}

package ui

// Config contains window/input settings for the presenter. The core (spec
// §1) treats the GUI window system as an external collaborator; this
// struct only carries what the presenter needs to drive it.
type Config struct {
	Title string // window title
	Scale int    // integer upscaling factor
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbemu"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
}

package storage

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// containerNamePattern follows Azure container naming: lowercase letters,
// digits, and single hyphens, starting and ending with a letter or digit.
var containerNamePattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9]|-[a-z0-9])*$`)

// Config holds Azure Blob Storage connection parameters. MaxListSize is
// clamped to MaxListCap.
type Config struct {
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	MaxListSize      int32  `toml:"max_list_size"`
}

// Env names the environment variables consulted by Finalize. Empty names are skipped.
type Env struct {
	ContainerName    string
	ConnectionString string
	MaxListSize      string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.ContainerName != "" {
		c.ContainerName = overlay.ContainerName
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
	if overlay.MaxListSize != 0 {
		c.MaxListSize = overlay.MaxListSize
	}
}

func (c *Config) loadDefaults() {
	if c.ContainerName == "" {
		c.ContainerName = "bundles"
	}
	if c.MaxListSize <= 0 {
		c.MaxListSize = 50
	}
	c.MaxListSize = min(c.MaxListSize, MaxListCap)
}

func (c *Config) loadEnv(env *Env) {
	lookup := func(name string) string {
		if name == "" {
			return ""
		}
		return os.Getenv(name)
	}

	c.Merge(&Config{
		ContainerName:    lookup(env.ContainerName),
		ConnectionString: lookup(env.ConnectionString),
	})

	if n, err := strconv.Atoi(lookup(env.MaxListSize)); err == nil && n > 0 {
		c.MaxListSize = int32(min(n, int(MaxListCap)))
	}
}

func (c *Config) validate() error {
	var errs []error
	switch n := len(c.ContainerName); {
	case n < 3 || n > 63:
		errs = append(errs, fmt.Errorf("container_name %q must be 3-63 characters", c.ContainerName))
	case !containerNamePattern.MatchString(c.ContainerName):
		errs = append(errs, fmt.Errorf("container_name %q must use lowercase letters, digits, and single hyphens", c.ContainerName))
	}
	if c.ConnectionString == "" {
		errs = append(errs, errors.New("connection_string required"))
	}
	return errors.Join(errs...)
}

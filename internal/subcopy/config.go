package subcopy

import (
	"context"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/sethvargo/go-envconfig"
)

// Config holds the process environment surface of the tool. Everything has a
// working default; the variables exist for tests and unusual setups.
type Config struct {
	// CacheDir overrides where bare mirror clones are kept.
	// Defaults to $XDG_CACHE_HOME/git-subcopy.
	CacheDir string `env:"GIT_SUBCOPY_CACHE_DIR"`

	// GitBin is the git binary used for interactive sessions.
	GitBin string `env:"GIT_SUBCOPY_GIT_BIN,default=git"`

	// Shell is the interactive shell spawned by the shell command and by
	// rebase when conflict resolution is needed.
	Shell string `env:"SHELL,default=/bin/sh"`
}

// LoadConfig reads Config from the environment and fills in defaults.
func LoadConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, WrapError(err, "failed to process environment")
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(xdg.CacheHome, "git-subcopy")
	}

	return &cfg, nil
}

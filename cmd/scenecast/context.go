package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"scenecast/internal/api"
	"scenecast/internal/config"
	"scenecast/internal/daemon"
	"scenecast/internal/jobstore"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) logLevel() string {
	if c.logLevelFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.logLevelFlag)
}

func (c *commandContext) client() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return api.NewClientFromConfig(cfg), nil
}

// withClient runs fn against the daemon API and rewrites connection failures
// into a hint about starting the daemon.
func (c *commandContext) withClient(fn func(*api.Client) error) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	if err := fn(client); err != nil {
		return wrapClientError(err, c.config)
	}
	return nil
}

// withOfflineStore opens the job store directly. It refuses while a daemon
// holds the lock.
func (c *commandContext) withOfflineStore(fn func(*jobstore.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, release, err := daemon.LockStore(cfg, nil)
	if errors.Is(err, daemon.ErrAlreadyRunning) {
		return fmt.Errorf("daemon is running; drop --offline to go through its API")
	}
	if err != nil {
		return err
	}
	defer release()
	return fn(store)
}

func wrapClientError(err error, cfg *config.Config) error {
	if !errors.Is(err, api.ErrUnavailable) {
		return err
	}
	bind := ""
	if cfg != nil {
		bind = cfg.Paths.APIBind
	}
	return fmt.Errorf("connect to daemon at %s: not reachable; start it with `scenecast daemon`", bind)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

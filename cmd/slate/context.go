package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"slate/internal/commons"
	"slate/internal/config"
	"slate/internal/dcc"
	"slate/internal/logging"
	"slate/internal/project"
	"slate/internal/session"
	"slate/internal/status"
	"slate/internal/task"
	"slate/internal/user"
	"slate/internal/work"
)

// commandContext lazily builds the shared environment behind every command:
// config, logger, session, commons store and the active-user manager.
type commandContext struct {
	configFlag  *string
	projectFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	envOnce sync.Once
	envErr  error

	session *session.Session
	store   *commons.Store
	users   *user.Manager
	adapter *dcc.Standalone
}

func newCommandContext(configFlag, projectFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		projectFlag: projectFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureEnv opens the commons store and restores the saved user session.
func (c *commandContext) ensureEnv() error {
	c.envOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.envErr = err
			return
		}
		logger, err := logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
		if err != nil {
			c.envErr = fmt.Errorf("build logger: %w", err)
			return
		}
		c.adapter = dcc.NewStandalone()
		c.session = session.New(c.adapter.Name(), logging.NewComponentLogger(logger, "cli"))
		c.session.SetLocalize(cfg.Localize)

		store, err := commons.Open(cfg.Paths.CommonsDir)
		if err != nil {
			c.envErr = fmt.Errorf("open commons: %w", err)
			return
		}
		c.store = store

		users, err := user.New(store, c.session, cfg.Paths.UserDir)
		if err != nil {
			c.envErr = fmt.Errorf("restore user state: %w", err)
			return
		}
		c.users = users
	})
	return c.envErr
}

func (c *commandContext) close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// openProject binds the session to the --project path or, when omitted, the
// last used project.
func (c *commandContext) openProject(ctx context.Context) (*project.Project, error) {
	if err := c.ensureEnv(); err != nil {
		return nil, err
	}
	path := ""
	if c.projectFlag != nil {
		path = strings.TrimSpace(*c.projectFlag)
	}
	if path == "" {
		path = c.users.LastProject()
	}
	if path == "" {
		return nil, errors.New("no project selected; pass --project or run `slate project use <path>`")
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	defaults, err := c.store.MetadataDefaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("load metadata defaults: %w", err)
	}
	return project.Open(c.session, expanded, defaults)
}

func (c *commandContext) taskManager(ctx context.Context) (*task.Manager, *project.Project, error) {
	proj, err := c.openProject(ctx)
	if err != nil {
		return nil, nil, err
	}
	return task.NewManager(proj, c.store), proj, nil
}

func (c *commandContext) workManager(ctx context.Context) (*work.Manager, *project.Project, error) {
	proj, err := c.openProject(ctx)
	if err != nil {
		return nil, nil, err
	}
	return work.NewManager(c.session, c.adapter), proj, nil
}

// run converts a core status into a CLI error so cobra reports it once.
func run(st status.Status) error {
	if st.OK() {
		return nil
	}
	return errors.New(st.Message)
}

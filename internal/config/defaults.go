package config

const (
	defaultCommonsDir    = "~/.local/share/slate/commons"
	defaultUserDir       = "~/.local/share/slate/user"
	defaultProjectsDir   = "~/projects"
	defaultLogDir        = "~/.local/share/slate/logs"
	defaultLocalCacheDir = "~/.cache/slate/localized"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CommonsDir:  defaultCommonsDir,
			UserDir:     defaultUserDir,
			ProjectsDir: defaultProjectsDir,
			LogDir:      defaultLogDir,
		},
		Localize: Localize{
			Enabled:        false,
			CacheDir:       defaultLocalCacheDir,
			CacheWorks:     true,
			CachePublishes: false,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

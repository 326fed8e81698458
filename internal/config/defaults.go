package config

const (
	defaultHomeDirName  = "~/.local/share/modkit"
	defaultConsoleLevel = "info"
	defaultSubsystem    = "default"

	// DefaultMaxFileSizeMB is the built-in logging rotation ceiling.
	DefaultMaxFileSizeMB = 100
	// DefaultHeartbeatSecs is the interval an OoP module's heartbeat
	// loop uses absent an explicit override.
	DefaultHeartbeatSecs = 5
	// DefaultStopGraceSecs bounds how long HostRuntime waits for a
	// module's Stop hook before moving on.
	DefaultStopGraceSecs = 30
	// DefaultSpawnGraceSecs bounds how long OopBackend waits after a
	// graceful termination signal before force-killing a child.
	DefaultSpawnGraceSecs = 10
	// DefaultPort is the directory gRPC endpoint's default bind port,
	// overridable by the config file, environment, or the CLI's --port
	// flag.
	DefaultPort = 8090
)

// Defaults returns the built-in configuration baseline: the lowest
// layer of the ConfigLoader's merge chain. Every field set here can be
// overridden by the config file, the environment, or a CLI flag.
func Defaults() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			HomeDir: defaultHomeDirName,
			Port:    DefaultPort,
		},
		Logging: LoggingConfig{
			defaultSubsystem: {
				ConsoleLevel: defaultConsoleLevel,
				Rotation:     &Rotation{MaxSizeMB: DefaultMaxFileSizeMB},
			},
		},
	}
}

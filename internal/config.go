package internal

import "time"

// Config is unmarshaled from the environment in main. Every knob that
// shapes runtime behavior lives here so deployments differ by env only.
type Config struct {
	Host string `env:"HOST,required=true"`
	Port int    `env:"PORT,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	MediaDir       string `env:"MEDIA_DIR,required=true"`

	LogLevel string `env:"LOG_LEVEL,required=true"`

	ConnectionBufferSize  int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	DeliveryTimeout       time.Duration `env:"DELIVERY_TIMEOUT,required=true"`
	TypingTTL             time.Duration `env:"TYPING_TTL,required=true"`
	PresenceSweepInterval time.Duration `env:"PRESENCE_SWEEP_INTERVAL,required=true"`
	StatsInterval         time.Duration `env:"STATS_INTERVAL,required=true"`
	RestartInterval       time.Duration `env:"RESTART_INTERVAL,required=true"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	// DebugPort enables the store inspector when set.
	DebugPort *int `env:"DEBUG_PORT"`
}

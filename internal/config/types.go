package config

import "time"

type Config struct {
	DiscordToken          string `env:"DISCORD_TOKEN"`
	SpotifyClientID       string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret   string `env:"SPOTIFY_CLIENT_SECRET"`
	DataDir               string `env:"DATA_DIR" envDefault:"./data"`
	BotStatus             string `env:"BOT_STATUS" envDefault:"online"` // online/dnd/idle
	BotActivity           string `env:"BOT_ACTIVITY" envDefault:"music"`
	RegisterCommandsOnBot bool   `env:"REGISTER_COMMANDS_ON_BOT" envDefault:"false"`
	YouTubeCookiesPath    string `env:"YOUTUBE_COOKIES_PATH"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"` // console/json

	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	QueueCapacity      int           `env:"QUEUE_CAPACITY" envDefault:"50"`
	HistoryCapacity    int           `env:"HISTORY_CAPACITY" envDefault:"50"`
	PlaylistLimit      int           `env:"PLAYLIST_LIMIT" envDefault:"50"`
	ResolverCacheSize  int           `env:"RESOLVER_CACHE_SIZE" envDefault:"100"`
	ResolveWorkers     int           `env:"RESOLVE_WORKERS" envDefault:"3"`
	ResolveRatePerSec  float64       `env:"RESOLVE_RATE_PER_SEC" envDefault:"2"`
	ResolveTimeout     time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"30s"`
	MaxResolveFailures int           `env:"MAX_RESOLVE_FAILURES" envDefault:"3"`
	DisconnectDebounce time.Duration `env:"DISCONNECT_DEBOUNCE" envDefault:"10s"`
}

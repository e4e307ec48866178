package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env       string          `yaml:"env" env:"APP_ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	WebRTC    WebRTCConfig    `yaml:"webrtc"`
	Call      CallConfig      `yaml:"call"`
	Directory DirectoryConfig `yaml:"directory"`
}

type HTTPConfig struct {
	Address        string   `yaml:"address" env:"HTTP_ADDRESS" env-default:""`
	AllowedOrigins []string `yaml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS"`
	// ReadHeaderTimeout bounds the handshake only; websocket reads have their own deadlines.
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env-default:"10s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
	// APIKey guards the booking endpoints. Empty disables the check.
	APIKey string `yaml:"api_key" env:"HTTP_API_KEY"`
}

type WebSocketConfig struct {
	ReadLimit   int64         `yaml:"read_limit" env-default:"65536"`
	WriteWait   time.Duration `yaml:"write_wait" env-default:"10s"`
	PongWait    time.Duration `yaml:"pong_wait" env-default:"60s"`
	SendTimeout time.Duration `yaml:"send_timeout" env-default:"2s"`
	SendBuffer  int           `yaml:"send_buffer" env-default:"64"`
	RatePerSec  float64       `yaml:"rate_per_sec" env-default:"50"`
	RateBurst   int           `yaml:"rate_burst" env-default:"100"`
}

type WebRTCConfig struct {
	STUNServers []string   `yaml:"stun_servers" env:"WEBRTC_STUN_SERVERS"`
	TURN        TURNConfig `yaml:"turn"`
}

type TURNConfig struct {
	URLs       []string `yaml:"urls" env:"WEBRTC_TURN_URLS"`
	Username   string   `yaml:"username" env:"WEBRTC_TURN_USERNAME"`
	Credential string   `yaml:"credential" env:"WEBRTC_TURN_CREDENTIAL"`
}

type CallConfig struct {
	InviteTTL     time.Duration `yaml:"invite_ttl" env-default:"10m"`
	SweepInterval time.Duration `yaml:"sweep_interval" env-default:"1m"`
}

type DirectoryConfig struct {
	// Driver is one of none, memory, postgres, sqlite.
	Driver string `yaml:"driver" env:"DIRECTORY_DRIVER" env-default:"none"`
	DSN    string `yaml:"dsn" env:"DIRECTORY_DSN"`
}

// PingPeriod must stay below PongWait so the peer has time to answer.
func (c WebSocketConfig) PingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// ResolvePath picks the config file: the explicit path, then CONFIG_PATH,
// then config/local.yaml.
func ResolvePath(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "config/local.yaml"
}

func LoadPath(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, &os.PathError{Op: "config", Path: configPath, Err: os.ErrNotExist}
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5000"}
	}
	if len(c.WebRTC.STUNServers) == 0 {
		c.WebRTC.STUNServers = []string{"stun:stun.l.google.com:19302"}
	}
	if c.WebSocket.SendBuffer <= 0 {
		c.WebSocket.SendBuffer = 64
	}
	if c.WebSocket.SendTimeout <= 0 {
		c.WebSocket.SendTimeout = 2 * time.Second
	}
	if c.WebSocket.PongWait <= 0 {
		c.WebSocket.PongWait = 60 * time.Second
	}
	if c.WebSocket.WriteWait <= 0 {
		c.WebSocket.WriteWait = 10 * time.Second
	}
	if c.HTTP.ReadHeaderTimeout <= 0 {
		c.HTTP.ReadHeaderTimeout = 10 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Call.InviteTTL <= 0 {
		c.Call.InviteTTL = 10 * time.Minute
	}
	if c.Call.SweepInterval <= 0 {
		c.Call.SweepInterval = time.Minute
	}
	if c.Directory.Driver == "" {
		c.Directory.Driver = "none"
	}
}

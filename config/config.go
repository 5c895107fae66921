package config

import (
	"encoding/json"
	"log"
	"os"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Auth     AuthConfig     `json:"auth"`
	Redis    RedisConfig    `json:"redis"`
	Kafka    KafkaConfig    `json:"kafka"`
	Chat     ChatConfig     `json:"chat"`
}

type ServerConfig struct {
	Addr         string   `json:"addr"`
	AllowOrigins []string `json:"allow_origins"`
	DataDir      string   `json:"data_dir"` // session files live here when Redis is absent
}

type DatabaseConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	Addr     string `json:"addr"` // empty disables Redis-backed components
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type KafkaConfig struct {
	Brokers  []string `json:"brokers"` // empty disables the event export
	Topic    string   `json:"topic"`
	GroupID  string   `json:"group_id"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	UseSCRAM bool     `json:"use_scram"`
	UseTLS   bool     `json:"use_tls"`
	CertFile string   `json:"cert_file"`
	KeyFile  string   `json:"key_file"`
	CAFile   string   `json:"ca_file"`
}

type ChatConfig struct {
	// Rate limit applied to message sends, per user
	SendLimit         int `json:"send_limit"`
	SendWindowSeconds int `json:"send_window_seconds"`
}

type OAuthProvider struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURL  string   `json:"redirect_url"`
	Scopes       []string `json:"scopes"`
	AuthURL      string   `json:"auth_url"`  // For custom OAuth providers
	TokenURL     string   `json:"token_url"` // For custom OAuth providers
}

type AuthConfig struct {
	JWTSecret     string `json:"jwt_secret"`
	TokenExpiry   int    `json:"token_expiry"`   // in hours
	RefreshExpiry int    `json:"refresh_expiry"` // in hours
	OAuth         struct {
		Google   OAuthProvider            `json:"google"`
		GitHub   OAuthProvider            `json:"github"`
		Facebook OAuthProvider            `json:"facebook"`
		Custom   map[string]OAuthProvider `json:"custom"`
	} `json:"oauth"`
}

func LoadConfig() (config Config, err error) {
	path := os.Getenv("SHOPHUB_CONFIG")
	if path == "" {
		path = "config/config.json"
	}
	file, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer func(file *os.File) {
		closeErr := file.Close()
		if closeErr != nil {
			log.Printf("Error closing config file: %v", closeErr)
		}
	}(file)
	decoder := json.NewDecoder(file)
	err = decoder.Decode(&config)
	if err != nil {
		return config, err
	}
	applyDefaults(&config)
	return config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.DataDir == "" {
		cfg.Server.DataDir = "data"
	}
	if len(cfg.Server.AllowOrigins) == 0 {
		cfg.Server.AllowOrigins = []string{"http://localhost:5173"}
	}
	if cfg.Chat.SendLimit == 0 {
		cfg.Chat.SendLimit = 20
	}
	if cfg.Chat.SendWindowSeconds == 0 {
		cfg.Chat.SendWindowSeconds = 60
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "chat-events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "shophub-chat"
	}
}

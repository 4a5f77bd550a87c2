package config

import (
	"os"
	"strconv"
	"time"
)

type ServerConfig struct {
	Port               string
	DatabaseURL        string
	HeartbeatInterval  time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
}

type AgentConfig struct {
	ServerURL       string
	UserID          string
	DataPath        string
	ReconnectDelay  time.Duration
	SyncInterval    time.Duration
	SweepInterval   time.Duration
	MaxSyncAttempts int
	NotificationTTL time.Duration
	PruneInterval   time.Duration
}

func LoadServer() ServerConfig {
	port := os.Getenv("REALTIME_PORT")
	if port == "" {
		port = "8090"
	}

	return ServerConfig{
		Port:               port,
		DatabaseURL:        os.Getenv("DB_DSN"),
		HeartbeatInterval:  readDurationSeconds("REALTIME_HEARTBEAT_SECONDS", 30),
		RateLimitPerMinute: readInt("REALTIME_RATE_LIMIT_PER_MINUTE", 120),
		RateLimitBurst:     readInt("REALTIME_RATE_LIMIT_BURST", 30),
	}
}

func LoadAgent() AgentConfig {
	serverURL := os.Getenv("AGENT_SERVER_URL")
	if serverURL == "" {
		serverURL = "http://localhost:8090"
	}
	dataPath := os.Getenv("AGENT_DATA_PATH")
	if dataPath == "" {
		dataPath = "agent.db"
	}

	return AgentConfig{
		ServerURL:       serverURL,
		UserID:          os.Getenv("AGENT_USER_ID"),
		DataPath:        dataPath,
		ReconnectDelay:  readDurationSeconds("AGENT_RECONNECT_SECONDS", 5),
		SyncInterval:    readDurationSeconds("AGENT_SYNC_SECONDS", 30),
		SweepInterval:   readDurationSeconds("AGENT_SWEEP_SECONDS", 60),
		MaxSyncAttempts: readInt("AGENT_MAX_SYNC_ATTEMPTS", 5),
		NotificationTTL: readDurationSeconds("AGENT_NOTIFICATION_TTL_SECONDS", 30*24*60*60),
		PruneInterval:   readDurationSeconds("AGENT_PRUNE_SECONDS", 6*60*60),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

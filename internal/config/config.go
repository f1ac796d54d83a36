package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Backend  BackendConfig
	Realtime RealtimeConfig
	Chat     ChatConfig
	Call     CallConfig
}

type BackendConfig struct {
	APIBaseURL  string
	WSBaseURL   string
	HTTPTimeout time.Duration
}

type RealtimeConfig struct {
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
}

type ChatConfig struct {
	TypingIdle          time.Duration
	ReadReceiptDelay    time.Duration
	StatusRequestDelay  time.Duration
	NotificationRefresh time.Duration
}

type CallConfig struct {
	STUNServers []string
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env file: %v", err)
	}

	return &Config{
		Backend: BackendConfig{
			APIBaseURL:  getEnvOrDefault("API_BASE_URL", "http://localhost:8000/api"),
			WSBaseURL:   getEnvOrDefault("WS_BASE_URL", "ws://localhost:8000"),
			HTTPTimeout: getDurationOrDefault("HTTP_TIMEOUT", "10s"),
		},
		Realtime: RealtimeConfig{
			ReconnectDelay:       getDurationOrDefault("RECONNECT_DELAY", "1s"),
			MaxReconnectAttempts: getIntOrDefault("MAX_RECONNECT_ATTEMPTS", 5),
		},
		Chat: ChatConfig{
			TypingIdle:          getDurationOrDefault("TYPING_IDLE", "2s"),
			ReadReceiptDelay:    getDurationOrDefault("READ_RECEIPT_DELAY", "500ms"),
			StatusRequestDelay:  getDurationOrDefault("STATUS_REQUEST_DELAY", "1s"),
			NotificationRefresh: getDurationOrDefault("NOTIFICATION_REFRESH", "30s"),
		},
		Call: CallConfig{
			STUNServers: getListOrDefault("STUN_SERVERS", "stun:stun.l.google.com:19302,stun:stun1.l.google.com:19302"),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key, defaultValue string) time.Duration {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("Invalid duration for %s: %v", key, err)
	}
	return duration
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("Invalid integer for %s: %v", key, err)
	}
	return intValue
}

func getListOrDefault(key, defaultValue string) []string {
	value := getEnvOrDefault(key, defaultValue)
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	LLM      LLMConfig
	TTS      TTSConfig
	Image    ImageConfig
	Storage  StorageConfig
	Pipeline PipelineConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	Provider       string // "openai", "anthropic", "ollama"
	OpenAIKey      string
	AnthropicKey   string
	OllamaURL      string
	Model          string
	EmbeddingModel string
}

type TTSConfig struct {
	Backend       string // "openai" or "local"
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	LocalBinPath  string // default: "piper"
	LocalModel    string // required when backend=local
	VoiceMale     string
	VoiceFemale   string
}

type ImageConfig struct {
	OpenAIKey string
	Model     string
}

type StorageConfig struct {
	Backend     string // "supabase" or "local"
	SupabaseURL string
	SupabaseKey string
	Bucket      string
	LocalDir    string
}

type PipelineConfig struct {
	OutputDir             string
	FFmpegBin             string
	FFprobeBin            string
	SegmentPauseMs        int
	MusicVolume           float64
	IntroPath             string
	OutroPath             string
	MusicPath             string
	MaxScriptBytes        int
	TargetDurationMinutes int
	SystemMemoryHighPct   float64
	ScriptMemoryHighPct   float64
	ProcessRSSWarnMB      float64
	AbandonedAfterMinutes int
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	pauseMs, err := getEnvInt("MIX_SEGMENT_PAUSE_MS", 400)
	if err != nil {
		return nil, fmt.Errorf("invalid MIX_SEGMENT_PAUSE_MS: %w", err)
	}

	abandonedAfter, err := getEnvInt("PIPELINE_ABANDONED_AFTER_MINUTES", 90)
	if err != nil {
		return nil, fmt.Errorf("invalid PIPELINE_ABANDONED_AFTER_MINUTES: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			Provider:       getEnv("LLM_PROVIDER", "openai"),
			OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:      getEnv("OLLAMA_URL", "http://localhost:11434"),
			Model:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		TTS: TTSConfig{
			Backend:       getEnv("TTS_BACKEND", "openai"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("TTS_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("TTS_OPENAI_MODEL", ""),
			LocalBinPath:  getEnv("TTS_LOCAL_PIPER_BIN", "piper"),
			LocalModel:    getEnv("TTS_LOCAL_PIPER_MODEL", ""),
			VoiceMale:     getEnv("TTS_VOICE_MALE", "onyx"),
			VoiceFemale:   getEnv("TTS_VOICE_FEMALE", "nova"),
		},
		Image: ImageConfig{
			OpenAIKey: getEnv("OPENAI_API_KEY", ""),
			Model:     getEnv("IMAGE_MODEL", "dall-e-3"),
		},
		Storage: StorageConfig{
			Backend:     getEnv("STORAGE_BACKEND", "local"),
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "episodes"),
			LocalDir:    getEnv("STORAGE_LOCAL_DIR", "/var/lib/podforge/media"),
		},
		Pipeline: PipelineConfig{
			OutputDir:             getEnv("OUTPUT_DIR", "/tmp/podforge_outputs"),
			FFmpegBin:             getEnv("FFMPEG_BIN", "ffmpeg"),
			FFprobeBin:            getEnv("FFPROBE_BIN", "ffprobe"),
			SegmentPauseMs:        pauseMs,
			MusicVolume:           getEnvFloat("MIX_MUSIC_VOLUME", 0.1),
			IntroPath:             getEnv("MIX_INTRO_PATH", ""),
			OutroPath:             getEnv("MIX_OUTRO_PATH", ""),
			MusicPath:             getEnv("MIX_MUSIC_PATH", ""),
			MaxScriptBytes:        50 * 1024,
			TargetDurationMinutes: 10,
			SystemMemoryHighPct:   getEnvFloat("GUARD_SYSTEM_MEMORY_PCT", 85),
			ScriptMemoryHighPct:   getEnvFloat("GUARD_SCRIPT_MEMORY_PCT", 90),
			ProcessRSSWarnMB:      400,
			AbandonedAfterMinutes: abandonedAfter,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

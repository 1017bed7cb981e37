package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/podcastgen/api/internal/model"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	Zitadel    ZitadelConfig
	Gateway    GatewayConfig
	HTTP       HTTPConfig
	MiniMax    MiniMaxConfig
	ElevenLabs ElevenLabsConfig
	Research   ResearchConfig
	Pipeline   PipelineConfig
	R2         R2Config
	Audio      AudioConfig
	Telemetry  TelemetryConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	PodcastPerHour int
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type GatewayConfig struct {
	Enabled bool
}

// HTTPConfig tunes the single client shared by every provider
type HTTPConfig struct {
	Timeout         time.Duration
	ConnectTimeout  time.Duration
	MaxIdleConns    int
	MaxConnsPerHost int
}

// MiniMaxConfig covers both the chat (script) and music endpoints
type MiniMaxConfig struct {
	APIKey      string
	GroupID     string
	BaseURL     string
	ChatModel   string
	MusicModel  string
	Temperature float64
	MaxTokens   int
}

type ElevenLabsConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	VoiceAlex  string
	VoiceSam   string
	Stability  float64
	Similarity float64
	SampleRate int
	MaxRetries int
}

// Voices returns the persona to voice id mapping
func (c *ElevenLabsConfig) Voices() map[model.Speaker]string {
	return map[model.Speaker]string{
		model.SpeakerAlex: c.VoiceAlex,
		model.SpeakerSam:  c.VoiceSam,
	}
}

type ResearchConfig struct {
	WikipediaURL string
	UserAgent    string
	MaxChars     int
	MaxLines     int
}

type PipelineConfig struct {
	OutputDir         string
	ClipConcurrency   int
	MasteringWorkers  int
	WorkerConcurrency int
	JobTimeout        time.Duration
	JinglePoll        time.Duration
	JingleMaxWait     time.Duration
	JingleSeconds     int
	GapMs             int
	PlaceholderMs     int
	TrackFadeMs       int
	TargetRMS         float64
	Ceiling           float64
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type AudioConfig struct {
	ServiceURL string
	Timeout    int // seconds
	EncodeMP3  bool
}

type TelemetryConfig struct {
	Enabled     bool
	ServiceName string
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("MINIMAX_API_KEY")
	readSecret("MINIMAX_GROUP_ID")
	readSecret("ELEVENLABS_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("ZITADEL_CLIENT_ID")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("ratelimit.podcast_per_hour", "RATELIMIT_PODCAST_PER_HOUR")
	_ = viper.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = viper.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = viper.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = viper.BindEnv("http.timeout", "HTTP_TIMEOUT")
	_ = viper.BindEnv("minimax.api_key", "MINIMAX_API_KEY")
	_ = viper.BindEnv("minimax.group_id", "MINIMAX_GROUP_ID")
	_ = viper.BindEnv("minimax.base_url", "MINIMAX_BASE_URL")
	_ = viper.BindEnv("minimax.chat_model", "MINIMAX_CHAT_MODEL")
	_ = viper.BindEnv("minimax.music_model", "MINIMAX_MUSIC_MODEL")
	_ = viper.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	_ = viper.BindEnv("elevenlabs.base_url", "ELEVENLABS_BASE_URL")
	_ = viper.BindEnv("elevenlabs.model", "ELEVENLABS_MODEL")
	_ = viper.BindEnv("elevenlabs.voice_alex", "VOICE_ALEX")
	_ = viper.BindEnv("elevenlabs.voice_sam", "VOICE_SAM")
	_ = viper.BindEnv("research.wikipedia_url", "WIKIPEDIA_URL")
	_ = viper.BindEnv("pipeline.output_dir", "OUTPUT_DIR")
	_ = viper.BindEnv("pipeline.clip_concurrency", "CLIP_CONCURRENCY")
	_ = viper.BindEnv("pipeline.mastering_workers", "MASTERING_WORKERS")
	_ = viper.BindEnv("pipeline.worker_concurrency", "WORKER_CONCURRENCY")
	_ = viper.BindEnv("pipeline.placeholder_ms", "PLACEHOLDER_MS")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("audio.service_url", "AUDIO_SERVICE_URL")
	_ = viper.BindEnv("audio.timeout", "AUDIO_SERVICE_TIMEOUT")
	_ = viper.BindEnv("audio.encode_mp3", "AUDIO_ENCODE_MP3")
	_ = viper.BindEnv("telemetry.enabled", "TELEMETRY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.podcast_per_hour", 10)

	// Shared HTTP client defaults
	viper.SetDefault("http.timeout", 300*time.Second)
	viper.SetDefault("http.connect_timeout", 10*time.Second)
	viper.SetDefault("http.max_idle_conns", 100)
	viper.SetDefault("http.max_conns_per_host", 20)

	// MiniMax defaults
	viper.SetDefault("minimax.base_url", "https://api.minimaxi.chat")
	viper.SetDefault("minimax.chat_model", "MiniMax-Text-01")
	viper.SetDefault("minimax.music_model", "music-01")
	viper.SetDefault("minimax.temperature", 0.85)
	viper.SetDefault("minimax.max_tokens", 4096)

	// ElevenLabs defaults
	viper.SetDefault("elevenlabs.base_url", "https://api.elevenlabs.io")
	viper.SetDefault("elevenlabs.model", "eleven_turbo_v2")
	viper.SetDefault("elevenlabs.voice_alex", "21m00Tcm4TlvDq8ikWAM")
	viper.SetDefault("elevenlabs.voice_sam", "AZnzlk1XvdvUeBnXmlld")
	viper.SetDefault("elevenlabs.stability", 0.5)
	viper.SetDefault("elevenlabs.similarity", 0.75)
	viper.SetDefault("elevenlabs.sample_rate", 24000)
	viper.SetDefault("elevenlabs.max_retries", 3)

	// Research defaults
	viper.SetDefault("research.wikipedia_url", "https://en.wikipedia.org/w/api.php")
	viper.SetDefault("research.user_agent", "PodcastGen/1.0")
	viper.SetDefault("research.max_chars", 3000)
	viper.SetDefault("research.max_lines", 120)

	// Pipeline defaults
	viper.SetDefault("pipeline.output_dir", "./output")
	viper.SetDefault("pipeline.clip_concurrency", 4)
	viper.SetDefault("pipeline.mastering_workers", 2)
	viper.SetDefault("pipeline.worker_concurrency", 4)
	viper.SetDefault("pipeline.job_timeout", 15*time.Minute)
	viper.SetDefault("pipeline.jingle_poll", 2*time.Second)
	viper.SetDefault("pipeline.jingle_max_wait", 60*time.Second)
	viper.SetDefault("pipeline.jingle_seconds", 15)
	viper.SetDefault("pipeline.gap_ms", 400)
	viper.SetDefault("pipeline.placeholder_ms", 0)
	viper.SetDefault("pipeline.track_fade_ms", 500)
	viper.SetDefault("pipeline.target_rms", -18.0)
	viper.SetDefault("pipeline.ceiling", -1.0)

	// Audio service defaults
	viper.SetDefault("audio.service_url", "")
	viper.SetDefault("audio.timeout", 120)
	viper.SetDefault("audio.encode_mp3", false)

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.service_name", "podcastgen-api")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			PodcastPerHour: viper.GetInt("ratelimit.podcast_per_hour"),
		},
		Zitadel: ZitadelConfig{
			Domain:   viper.GetString("zitadel.domain"),
			ClientID: viper.GetString("zitadel.client_id"),
			Issuer:   viper.GetString("zitadel.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
		HTTP: HTTPConfig{
			Timeout:         viper.GetDuration("http.timeout"),
			ConnectTimeout:  viper.GetDuration("http.connect_timeout"),
			MaxIdleConns:    viper.GetInt("http.max_idle_conns"),
			MaxConnsPerHost: viper.GetInt("http.max_conns_per_host"),
		},
		MiniMax: MiniMaxConfig{
			APIKey:      viper.GetString("minimax.api_key"),
			GroupID:     viper.GetString("minimax.group_id"),
			BaseURL:     viper.GetString("minimax.base_url"),
			ChatModel:   viper.GetString("minimax.chat_model"),
			MusicModel:  viper.GetString("minimax.music_model"),
			Temperature: viper.GetFloat64("minimax.temperature"),
			MaxTokens:   viper.GetInt("minimax.max_tokens"),
		},
		ElevenLabs: ElevenLabsConfig{
			APIKey:     viper.GetString("elevenlabs.api_key"),
			BaseURL:    viper.GetString("elevenlabs.base_url"),
			Model:      viper.GetString("elevenlabs.model"),
			VoiceAlex:  viper.GetString("elevenlabs.voice_alex"),
			VoiceSam:   viper.GetString("elevenlabs.voice_sam"),
			Stability:  viper.GetFloat64("elevenlabs.stability"),
			Similarity: viper.GetFloat64("elevenlabs.similarity"),
			SampleRate: viper.GetInt("elevenlabs.sample_rate"),
			MaxRetries: viper.GetInt("elevenlabs.max_retries"),
		},
		Research: ResearchConfig{
			WikipediaURL: viper.GetString("research.wikipedia_url"),
			UserAgent:    viper.GetString("research.user_agent"),
			MaxChars:     viper.GetInt("research.max_chars"),
			MaxLines:     viper.GetInt("research.max_lines"),
		},
		Pipeline: PipelineConfig{
			OutputDir:         viper.GetString("pipeline.output_dir"),
			ClipConcurrency:   viper.GetInt("pipeline.clip_concurrency"),
			MasteringWorkers:  viper.GetInt("pipeline.mastering_workers"),
			WorkerConcurrency: viper.GetInt("pipeline.worker_concurrency"),
			JobTimeout:        viper.GetDuration("pipeline.job_timeout"),
			JinglePoll:        viper.GetDuration("pipeline.jingle_poll"),
			JingleMaxWait:     viper.GetDuration("pipeline.jingle_max_wait"),
			JingleSeconds:     viper.GetInt("pipeline.jingle_seconds"),
			GapMs:             viper.GetInt("pipeline.gap_ms"),
			PlaceholderMs:     viper.GetInt("pipeline.placeholder_ms"),
			TrackFadeMs:       viper.GetInt("pipeline.track_fade_ms"),
			TargetRMS:         viper.GetFloat64("pipeline.target_rms"),
			Ceiling:           viper.GetFloat64("pipeline.ceiling"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Audio: AudioConfig{
			ServiceURL: viper.GetString("audio.service_url"),
			Timeout:    viper.GetInt("audio.timeout"),
			EncodeMP3:  viper.GetBool("audio.encode_mp3"),
		},
		Telemetry: TelemetryConfig{
			Enabled:     viper.GetBool("telemetry.enabled"),
			ServiceName: viper.GetString("telemetry.service_name"),
		},
	}

	return cfg, nil
}

// Validate checks the settings the pipeline cannot run without
func (c *Config) Validate() error {
	for speaker, voice := range c.ElevenLabs.Voices() {
		if strings.TrimSpace(voice) == "" {
			return &model.ConfigurationError{Setting: "elevenlabs.voice_" + strings.ToLower(string(speaker)), Message: "no voice mapped for " + string(speaker)}
		}
	}
	p := c.Pipeline
	switch {
	case p.OutputDir == "":
		return &model.ConfigurationError{Setting: "pipeline.output_dir", Message: "must not be empty"}
	case p.GapMs < 0:
		return &model.ConfigurationError{Setting: "pipeline.gap_ms", Message: "must not be negative"}
	case p.PlaceholderMs < 0:
		return &model.ConfigurationError{Setting: "pipeline.placeholder_ms", Message: "must not be negative"}
	case p.Ceiling > 0:
		return &model.ConfigurationError{Setting: "pipeline.ceiling", Message: "must be at or below 0 dBFS"}
	case p.TargetRMS > p.Ceiling:
		return &model.ConfigurationError{Setting: "pipeline.target_rms", Message: "must be below the peak ceiling"}
	case p.JinglePoll <= 0 || p.JingleMaxWait <= 0:
		return &model.ConfigurationError{Setting: "pipeline.jingle_poll", Message: "poll interval and max wait must be positive"}
	}
	if c.ElevenLabs.SampleRate <= 0 {
		return &model.ConfigurationError{Setting: "elevenlabs.sample_rate", Message: "must be positive"}
	}
	return nil
}

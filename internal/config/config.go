package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
	// StdoutTraces enables the pretty-printed stdout span exporter when no OTLP endpoint is set.
	StdoutTraces bool `yaml:"stdout_traces"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Profile     ProfileConfig   `yaml:"profile"`
	Catalog     CatalogConfig   `yaml:"catalog"`
	LLM         LLMConfig       `yaml:"llm"`
	TTS         TTSConfig       `yaml:"tts"`
	Narration   NarrationConfig `yaml:"narration"`
	Player      PlayerConfig    `yaml:"player"`
	Billing     BillingConfig   `yaml:"billing"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type ProfileConfig struct {
	Path string `yaml:"path"`
	Mode string `yaml:"mode"` // ephemeral, persistent
	Key  string `yaml:"key"`
}

type CatalogConfig struct {
	// Path overrides the embedded catalog when set.
	Path string `yaml:"path"`
	// Language is the language catalog summaries are written in.
	Language string `yaml:"language"`
}

type LLMConfig struct {
	Mode        string  `yaml:"mode"` // mock, ollama, exec
	Endpoint    string  `yaml:"endpoint"`
	Command     string  `yaml:"command"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutMS   int     `yaml:"timeout_ms"`
}

type TTSConfig struct {
	Mode          string `yaml:"mode"` // mock, exec
	Command       string `yaml:"command"`
	VoiceFemale   string `yaml:"voice_female"`
	VoiceMale     string `yaml:"voice_male"`
	SampleRate    int    `yaml:"sample_rate"`
	Channels      int    `yaml:"channels"`
	BitsPerSample int    `yaml:"bits_per_sample"`
	TimeoutMS     int    `yaml:"timeout_ms"`
}

type NarrationConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Translate        string `yaml:"translate"` // always, auto, never
	MaxTranslateRune int    `yaml:"max_translate_runes"`
	DefaultLanguage  string `yaml:"default_language"`
	TimeoutMS        int    `yaml:"timeout_ms"`
}

type PlayerConfig struct {
	TickMS int `yaml:"tick_ms"`
}

type BillingConfig struct {
	Currency     string `yaml:"currency"`
	ProcessingMS int    `yaml:"processing_ms"`
}

func Default() Config {
	return Config{
		RuntimeName: "loqa-books",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8090,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Host:           "127.0.0.1",
			Port:           4223,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4223"},
			ConnectTimeout: 2000,
		},
		Profile: ProfileConfig{
			Path: "./data/books-profile.db",
			Mode: "persistent",
			Key:  "booksummary_user",
		},
		Catalog: CatalogConfig{
			Language: "English",
		},
		LLM: LLMConfig{
			Mode:        "mock",
			Endpoint:    "http://localhost:11434",
			Model:       "llama3.2:latest",
			MaxTokens:   1024,
			Temperature: 0.7,
			TimeoutMS:   60000,
		},
		TTS: TTSConfig{
			Mode:          "mock",
			VoiceFemale:   "Kore",
			VoiceMale:     "Fenrir",
			SampleRate:    24000,
			Channels:      1,
			BitsPerSample: 16,
			TimeoutMS:     60000,
		},
		Narration: NarrationConfig{
			Enabled:          true,
			Translate:        "auto",
			MaxTranslateRune: 3000,
			DefaultLanguage:  "Français",
			TimeoutMS:        120000,
		},
		Player: PlayerConfig{
			TickMS: 250,
		},
		Billing: BillingConfig{
			Currency:     "DA",
			ProcessingMS: 2000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "BOOKS_RUNTIME_NAME")
	overrideString(&cfg.Environment, "BOOKS_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "BOOKS_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "BOOKS_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "BOOKS_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "BOOKS_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "BOOKS_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Telemetry.StdoutTraces, "BOOKS_TELEMETRY_STDOUT_TRACES")
	overrideBool(&cfg.Bus.Embedded, "BOOKS_BUS_EMBEDDED")
	overrideString(&cfg.Bus.Host, "BOOKS_BUS_HOST")
	overrideInt(&cfg.Bus.Port, "BOOKS_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "BOOKS_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "BOOKS_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "BOOKS_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "BOOKS_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "BOOKS_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "BOOKS_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "BOOKS_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Profile.Path, "BOOKS_PROFILE_PATH")
	overrideString(&cfg.Profile.Mode, "BOOKS_PROFILE_MODE")
	overrideString(&cfg.Profile.Key, "BOOKS_PROFILE_KEY")
	overrideString(&cfg.Catalog.Path, "BOOKS_CATALOG_PATH")
	overrideString(&cfg.Catalog.Language, "BOOKS_CATALOG_LANGUAGE")
	overrideString(&cfg.LLM.Mode, "BOOKS_LLM_MODE")
	overrideString(&cfg.LLM.Endpoint, "BOOKS_LLM_ENDPOINT")
	overrideString(&cfg.LLM.Command, "BOOKS_LLM_COMMAND")
	overrideString(&cfg.LLM.Model, "BOOKS_LLM_MODEL")
	overrideInt(&cfg.LLM.MaxTokens, "BOOKS_LLM_MAX_TOKENS")
	overrideFloat(&cfg.LLM.Temperature, "BOOKS_LLM_TEMPERATURE")
	overrideInt(&cfg.LLM.TimeoutMS, "BOOKS_LLM_TIMEOUT_MS")
	overrideString(&cfg.TTS.Mode, "BOOKS_TTS_MODE")
	overrideString(&cfg.TTS.Command, "BOOKS_TTS_COMMAND")
	overrideString(&cfg.TTS.VoiceFemale, "BOOKS_TTS_VOICE_FEMALE")
	overrideString(&cfg.TTS.VoiceMale, "BOOKS_TTS_VOICE_MALE")
	overrideInt(&cfg.TTS.SampleRate, "BOOKS_TTS_SAMPLE_RATE")
	overrideInt(&cfg.TTS.Channels, "BOOKS_TTS_CHANNELS")
	overrideInt(&cfg.TTS.BitsPerSample, "BOOKS_TTS_BITS_PER_SAMPLE")
	overrideInt(&cfg.TTS.TimeoutMS, "BOOKS_TTS_TIMEOUT_MS")
	overrideBool(&cfg.Narration.Enabled, "BOOKS_NARRATION_ENABLED")
	overrideString(&cfg.Narration.Translate, "BOOKS_NARRATION_TRANSLATE")
	overrideInt(&cfg.Narration.MaxTranslateRune, "BOOKS_NARRATION_MAX_TRANSLATE_RUNES")
	overrideString(&cfg.Narration.DefaultLanguage, "BOOKS_NARRATION_DEFAULT_LANGUAGE")
	overrideInt(&cfg.Narration.TimeoutMS, "BOOKS_NARRATION_TIMEOUT_MS")
	overrideInt(&cfg.Player.TickMS, "BOOKS_PLAYER_TICK_MS")
	overrideString(&cfg.Billing.Currency, "BOOKS_BILLING_CURRENCY")
	overrideInt(&cfg.Billing.ProcessingMS, "BOOKS_BILLING_PROCESSING_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Profile.Mode {
	case "ephemeral":
	case "persistent":
		if cfg.Profile.Path == "" {
			return errors.New("profile.path must not be empty when mode=persistent")
		}
	default:
		return errors.New("profile.mode must be one of ephemeral|persistent")
	}
	if cfg.Profile.Key == "" {
		return errors.New("profile.key must not be empty")
	}
	switch cfg.LLM.Mode {
	case "mock", "ollama", "exec":
	default:
		return errors.New("llm.mode must be one of mock|ollama|exec")
	}
	if cfg.LLM.Mode == "ollama" && cfg.LLM.Endpoint == "" {
		return errors.New("llm.endpoint must be set when mode=ollama")
	}
	if cfg.LLM.Mode == "exec" && cfg.LLM.Command == "" {
		return errors.New("llm.command must be set when mode=exec")
	}
	if cfg.LLM.MaxTokens < 0 {
		return errors.New("llm.max_tokens must be >= 0")
	}
	switch cfg.TTS.Mode {
	case "mock", "exec":
	default:
		return errors.New("tts.mode must be one of mock|exec")
	}
	if cfg.TTS.Mode == "exec" && cfg.TTS.Command == "" {
		return errors.New("tts.command must be set when mode=exec")
	}
	if cfg.TTS.SampleRate <= 0 {
		return errors.New("tts.sample_rate must be positive")
	}
	if cfg.TTS.Channels <= 0 {
		return errors.New("tts.channels must be positive")
	}
	if cfg.TTS.BitsPerSample <= 0 || cfg.TTS.BitsPerSample%8 != 0 {
		return errors.New("tts.bits_per_sample must be a positive multiple of 8")
	}
	switch cfg.Narration.Translate {
	case "always", "auto", "never":
	default:
		return errors.New("narration.translate must be one of always|auto|never")
	}
	if cfg.Narration.MaxTranslateRune < 0 {
		return errors.New("narration.max_translate_runes must be >= 0")
	}
	if cfg.Player.TickMS < 0 {
		return errors.New("player.tick_ms must be >= 0")
	}
	if cfg.Billing.ProcessingMS < 0 {
		return errors.New("billing.processing_ms must be >= 0")
	}
	return nil
}

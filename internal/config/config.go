package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// Config aggregates every setting the service needs.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	AI       AIConfig
	Mood     MoodConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Database: loadDatabaseConfig(),
		AI:       ai,
		Mood:     loadMoodConfig(),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// DatabaseConfig locates the SQLite history file.
type DatabaseConfig struct {
	Path string
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{Path: getEnvOrDefault("MIRROR_DB", "mirror.db")}
}

// MoodConfig carries the emotion label supplied by the external
// detection collaborator at process start. The label is opaque here.
type MoodConfig struct {
	Label string
}

func loadMoodConfig() MoodConfig {
	label := strings.TrimSpace(os.Getenv("MIRROR_MOOD"))
	if label == "" {
		label = "neutral"
	}
	return MoodConfig{Label: label}
}

// AIConfig describes the text-generation backend.
type AIConfig struct {
	Provider    string
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Timeout     time.Duration
}

// Enabled reports whether the required credentials were provided.
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case "gemini":
		return c.APIKey != "" && c.Model != ""
	case "ark":
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	default:
		return false
	}
}

// NewChatModel builds the chat model selected by Provider.
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	switch c.Provider {
	case "gemini":
		return c.newGeminiModel(ctx)
	case "ark":
		return c.newArkModel(ctx)
	default:
		return nil, fmt.Errorf("unsupported generation provider: %q", c.Provider)
	}
}

func (c AIConfig) newGeminiModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: c.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	// Thinking stays off: replies must arrive at conversational latency.
	budget := int32(0)
	return gemini.NewChatModel(ctx, &gemini.Config{
		Client: client,
		Model:  c.Model,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &budget,
		},
	})
}

func (c AIConfig) newArkModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials missing: provide ARK_API_KEY + GEN_MODEL or the AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("GEN_PROVIDER", "gemini"))

	temperature, err := parseOptionalFloatEnv("GEN_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("GEN_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("GEN_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	var timeout time.Duration
	if seconds, err := parseOptionalIntEnv("GEN_TIMEOUT"); err != nil {
		return AIConfig{}, err
	} else if seconds != nil {
		if *seconds < 0 {
			return AIConfig{}, fmt.Errorf("GEN_TIMEOUT must not be negative, got %d", *seconds)
		}
		timeout = time.Duration(*seconds) * time.Second
	}

	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	modelName := getEnvOrDefault("GEN_MODEL", "gemini-2.5-flash")
	if provider == "ark" {
		apiKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		modelName = strings.TrimSpace(os.Getenv("GEN_MODEL"))
	}

	return AIConfig{
		Provider:    provider,
		APIKey:      apiKey,
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       modelName,
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		Timeout:     timeout,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

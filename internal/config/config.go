package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	LLM        LLMConfig
	Embedding  EmbeddingConfig
	Search     SearchConfig
	Storage    StorageConfig
	Processing ProcessingConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimitMB  int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type LoggerConfig struct {
	Level string
	Env   string
}

// LLMConfig selects the chat-completion backend used for question
// extraction and answer generation.
type LLMConfig struct {
	Source string // "ollama" or "openai"
	Ollama OllamaConfig
	OpenAI OpenAIConfig
}

type OllamaConfig struct {
	ServerURL string
	Model     string
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

type EmbeddingConfig struct {
	Source              string // "ollama" or "openai"
	SimilarityThreshold float64
	CacheTTL            time.Duration
	Ollama              OllamaConfig
	OpenAI              OpenAIConfig
}

// SearchConfig holds Google Custom Search credentials for the web half
// of context retrieval.
type SearchConfig struct {
	APIKey        string
	EngineID      string
	MaxWebResults int
}

type StorageConfig struct {
	BaseDir       string
	PublicBaseURL string
}

type ProcessingConfig struct {
	MaxConcurrentQuestions int
	BatchCooldown          time.Duration
	MaxContextResults      int
	SnippetPreviewLength   int
	GeminiAPIKey           string
	GeminiVisionModel      string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if os.Getenv("ENV") == "test" {
		viper.AddConfigPath("../../config")
		viper.AddConfigPath("../../")
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port:         viper.GetInt("server.port"),
			ReadTimeout:  time.Duration(viper.GetInt("server.read_timeout")) * time.Second,
			WriteTimeout: time.Duration(viper.GetInt("server.write_timeout")) * time.Second,
			BodyLimitMB:  viper.GetInt("server.body_limit_mb"),
		},
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetInt("db.port"),
			User:     viper.GetString("db.user"),
			Password: viper.GetString("db.password"),
			DBName:   viper.GetString("db.name"),
			SSLMode:  viper.GetString("db.sslmode"),
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Logger: LoggerConfig{
			Level: viper.GetString("logger.level"),
			Env:   viper.GetString("logger.env"),
		},
		LLM: LLMConfig{
			Source: viper.GetString("llm.source"),
			Ollama: OllamaConfig{
				ServerURL: viper.GetString("llm.ollama.server_url"),
				Model:     viper.GetString("llm.ollama.model"),
			},
			OpenAI: OpenAIConfig{
				APIKey: viper.GetString("llm.openai.api_key"),
				Model:  viper.GetString("llm.openai.model"),
			},
		},
		Embedding: EmbeddingConfig{
			Source:              viper.GetString("embedding.source"),
			SimilarityThreshold: viper.GetFloat64("embedding.similarity_threshold"),
			CacheTTL:            viper.GetDuration("embedding.cache_ttl"),
			Ollama: OllamaConfig{
				ServerURL: viper.GetString("embedding.ollama.server_url"),
				Model:     viper.GetString("embedding.ollama.model"),
			},
			OpenAI: OpenAIConfig{
				APIKey: viper.GetString("embedding.openai.api_key"),
				Model:  viper.GetString("embedding.openai.model"),
			},
		},
		Search: SearchConfig{
			APIKey:        viper.GetString("search.api_key"),
			EngineID:      viper.GetString("search.engine_id"),
			MaxWebResults: viper.GetInt("search.max_web_results"),
		},
		Storage: StorageConfig{
			BaseDir:       viper.GetString("storage.base_dir"),
			PublicBaseURL: viper.GetString("storage.public_base_url"),
		},
		Processing: ProcessingConfig{
			MaxConcurrentQuestions: viper.GetInt("processing.max_concurrent_questions"),
			BatchCooldown:          viper.GetDuration("processing.batch_cooldown"),
			MaxContextResults:      viper.GetInt("processing.max_context_results"),
			SnippetPreviewLength:   viper.GetInt("processing.snippet_preview_length"),
			GeminiAPIKey:           viper.GetString("processing.gemini_api_key"),
			GeminiVisionModel:      viper.GetString("processing.gemini_vision_model"),
		},
	}

	// Environment variables beat file values for secrets and endpoints.
	if host := os.Getenv("DB_HOST"); host != "" {
		config.DB.Host = host
	}
	if user := os.Getenv("DB_USER"); user != "" {
		config.DB.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		config.DB.Password = password
	}
	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		config.DB.DBName = dbname
	}
	if redisAddress := os.Getenv("REDIS_ADDRESS"); redisAddress != "" {
		config.Redis.Address = redisAddress
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.Redis.Password = redisPassword
	}
	if openAIKey := os.Getenv("OPENAI_API_KEY"); openAIKey != "" {
		config.LLM.OpenAI.APIKey = openAIKey
		config.Embedding.OpenAI.APIKey = openAIKey
	}
	if geminiKey := os.Getenv("GEMINI_API_KEY"); geminiKey != "" {
		config.Processing.GeminiAPIKey = geminiKey
	}
	if searchKey := os.Getenv("GOOGLE_SEARCH_API_KEY"); searchKey != "" {
		config.Search.APIKey = searchKey
	}
	if engineID := os.Getenv("GOOGLE_SEARCH_ENGINE_ID"); engineID != "" {
		config.Search.EngineID = engineID
	}

	return config, nil
}

func setDefaults() {
	viper.SetDefault("server.body_limit_mb", 50)
	viper.SetDefault("db.sslmode", "disable")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("embedding.similarity_threshold", 0.7)
	viper.SetDefault("embedding.cache_ttl", "168h")
	viper.SetDefault("search.max_web_results", 3)
	viper.SetDefault("processing.max_concurrent_questions", 10)
	viper.SetDefault("processing.batch_cooldown", time.Second)
	viper.SetDefault("processing.max_context_results", 5)
	viper.SetDefault("processing.snippet_preview_length", 200)
	viper.SetDefault("processing.gemini_vision_model", "gemini-1.5-flash")
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User,
		c.DB.Password,
		c.DB.Host,
		c.DB.Port,
		c.DB.DBName,
		c.DB.SSLMode,
	)
}

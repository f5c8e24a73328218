package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	SQLite  SQLiteConfig
	Vector  VectorConfig
	LLM     LLMConfig
	Eval    EvalConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host                 string
	Port                 int
	ReadTimeout          int
	WriteTimeout         int
	BodyLimit            int
	MaxRequestsPerMinute int
	WebhookVerifyToken   string
}

type SQLiteConfig struct {
	Path string
}

type VectorConfig struct {
	Dir        string
	Collection string
	RAGVersion string
	RetrievalK int
	BatchSize  int
}

type LLMConfig struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	ASRModel       string
	Temperature    float32
	TimeoutSec     int
	MaxRetries     int
}

type EvalConfig struct {
	QualityThreshold float64
	HistoryTurns     int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/laserostop")

	viper.SetEnvPrefix("LASEROSTOP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// The OpenAI key is conventionally set without the app prefix.
	_ = viper.BindEnv("llm.apiKey", "LASEROSTOP_LLM_APIKEY", "OPENAI_API_KEY")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 26214400)
	viper.SetDefault("server.maxRequestsPerMinute", 60)
	viper.SetDefault("server.webhookVerifyToken", "change-me")

	viper.SetDefault("sqlite.path", "./data/laserostop_cm.db")

	viper.SetDefault("vector.dir", "./vector_store")
	viper.SetDefault("vector.collection", "laserostop_tunisian_messages")
	viper.SetDefault("vector.ragVersion", "rag_v1")
	viper.SetDefault("vector.retrievalK", 5)
	viper.SetDefault("vector.batchSize", 100)

	viper.SetDefault("llm.chatModel", "gpt-4o-mini")
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.asrModel", "whisper-1")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.timeoutSec", 30)
	viper.SetDefault("llm.maxRetries", 3)

	viper.SetDefault("eval.qualityThreshold", 0.4)
	viper.SetDefault("eval.historyTurns", 3)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}

package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xela07ax/pricegate/internal/guard"
)

// Config — корневая структура конфигурации сервиса.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Guardrails guard.Guardrails `mapstructure:"guardrails"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig описывает настройки ops HTTP-сервера (health, metrics, выборки).
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig описывает подключение к PostgreSQL.
// Пустой URL — работаем на внутрипамятном леджере (dev-режим).
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (брокер шины + freeze switch).
// Пустой Addr — шина работает чисто в процессе.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PipelineConfig содержит настройки конвейера решений.
type PipelineConfig struct {
	AutoApply     bool          `mapstructure:"auto_apply"`
	FreezeEnabled bool          `mapstructure:"freeze_enabled"`

	// Настройки RetryExecutor для apply-операции и брокера
	RetryAttempts uint          `mapstructure:"retry_attempts"`
	RetryBase     time.Duration `mapstructure:"retry_base"`
	RetryCap      time.Duration `mapstructure:"retry_cap"`

	// Буфер аудит-трейла
	TrailBufferSize    int           `mapstructure:"trail_buffer_size"`
	TrailBatchSize     int           `mapstructure:"trail_batch_size"`
	TrailFlushInterval time.Duration `mapstructure:"trail_flush_interval"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")    // имя файла без расширения
	v.SetConfigType("yaml")      // формат
	v.AddConfigPath(".")         // ищем в корне
	v.AddConfigPath("./configs") // и в папке с конфигами

	// 2. Настройка переменных окружения (ENV)
	// Позволяет перекрывать конфиг: SERVER_PORT=9000 перекроет server.port
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Установка дефолтных значений
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Валидация границ guardrails: обе доли обязаны лежать в [0,1]
	if err := cfg.Guardrails.Check(); err != nil {
		return nil, err
	}
	if cfg.Pipeline.RetryAttempts == 0 {
		cfg.Pipeline.RetryAttempts = 1
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("guardrails.min_margin", 0.12)
	v.SetDefault("guardrails.max_delta", 0.10)
	v.SetDefault("pipeline.auto_apply", true)
	v.SetDefault("pipeline.freeze_enabled", false)
	v.SetDefault("pipeline.retry_attempts", 3)
	v.SetDefault("pipeline.retry_base", 400*time.Millisecond)
	v.SetDefault("pipeline.retry_cap", 3*time.Second)
	v.SetDefault("pipeline.trail_buffer_size", 10000)
	v.SetDefault("pipeline.trail_batch_size", 100)
	v.SetDefault("pipeline.trail_flush_interval", 500*time.Millisecond)
}

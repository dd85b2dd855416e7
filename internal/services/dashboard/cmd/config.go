package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/dashboard"
	"github.com/LeonardoBeccarini/fertilizer_advisor/pkg/rabbitmq"
)

type Config struct {
	Port      string
	GRPCPort  string
	LogLevel  string
	LogFormat string

	ModelBackend     string // local | remote
	ClassifierPath   string
	RegressorPath    string
	LabelEncoderPath string
	ModelServiceURL  string

	Timeout    time.Duration
	CBFails    int
	CBOpen     time.Duration
	CBInterval time.Duration

	CatalogPath string

	InfluxURL     string
	InfluxToken   string
	InfluxOrg     string
	InfluxBucket  string
	Measurement   string
	PrefillWindow time.Duration

	MQTTEnabled   bool
	Rabbit        rabbitmq.RabbitMQConfig
	TopicTemplate string
	DedupTTL      time.Duration
}

var defaults = map[string]any{
	"PORT":       "5009",
	"GRPC_PORT":  "",
	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",

	"MODEL_BACKEND":      "local",
	"CLASSIFIER_PATH":    "models/classification_model.json",
	"REGRESSOR_PATH":     "models/regression_model.json",
	"LABEL_ENCODER_PATH": "models/label_encoder.json",
	"MODEL_SERVICE_URL":  "",

	"TIMEOUT_MS":     3000,
	"CB_FAILS":       5,
	"CB_OPEN_MS":     10000,
	"CB_INTERVAL_MS": 60000,

	"CATALOG_PATH": "",

	"INFLUX_URL":      "",
	"INFLUX_TOKEN":    "",
	"INFLUX_ORG":      "sdcc",
	"INFLUX_BUCKET":   "agri",
	"MEASUREMENT":     "soil_reading",
	"PREFILL_MINUTES": 1440,

	"MQTT_ENABLED":                  false,
	"RABBITMQ_HOST":                 "localhost",
	"RABBITMQ_PORT":                 1883,
	"RABBITMQ_USER":                 "guest",
	"RABBITMQ_PASSWORD":             "guest",
	"MQTT_CLIENT_ID":                "fertilizer-advisor",
	"RECOMMENDATION_TOPIC_TEMPLATE": dashboard.DefaultTopicTemplate,
	"DEDUP_TTL_MS":                  600000,
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// loadDotEnv loads .env when present; variables already set win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func ms(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Millisecond
}

func loadConfig(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := Config{
		Port:      v.GetString("PORT"),
		GRPCPort:  v.GetString("GRPC_PORT"),
		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		ModelBackend:     strings.ToLower(strings.TrimSpace(v.GetString("MODEL_BACKEND"))),
		ClassifierPath:   v.GetString("CLASSIFIER_PATH"),
		RegressorPath:    v.GetString("REGRESSOR_PATH"),
		LabelEncoderPath: v.GetString("LABEL_ENCODER_PATH"),
		ModelServiceURL:  v.GetString("MODEL_SERVICE_URL"),

		Timeout:    ms(v, "TIMEOUT_MS"),
		CBFails:    v.GetInt("CB_FAILS"),
		CBOpen:     ms(v, "CB_OPEN_MS"),
		CBInterval: ms(v, "CB_INTERVAL_MS"),

		CatalogPath: v.GetString("CATALOG_PATH"),

		InfluxURL:     v.GetString("INFLUX_URL"),
		InfluxToken:   v.GetString("INFLUX_TOKEN"),
		InfluxOrg:     v.GetString("INFLUX_ORG"),
		InfluxBucket:  v.GetString("INFLUX_BUCKET"),
		Measurement:   v.GetString("MEASUREMENT"),
		PrefillWindow: time.Duration(v.GetInt("PREFILL_MINUTES")) * time.Minute,

		MQTTEnabled: v.GetBool("MQTT_ENABLED"),
		Rabbit: rabbitmq.RabbitMQConfig{
			Host:     v.GetString("RABBITMQ_HOST"),
			Port:     v.GetInt("RABBITMQ_PORT"),
			User:     v.GetString("RABBITMQ_USER"),
			Password: v.GetString("RABBITMQ_PASSWORD"),
			ClientID: v.GetString("MQTT_CLIENT_ID"),
		},
		TopicTemplate: v.GetString("RECOMMENDATION_TOPIC_TEMPLATE"),
		DedupTTL:      ms(v, "DEDUP_TTL_MS"),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	switch c.ModelBackend {
	case "local":
		if c.ClassifierPath == "" || c.RegressorPath == "" || c.LabelEncoderPath == "" {
			errs = append(errs, errors.New("local backend needs CLASSIFIER_PATH, REGRESSOR_PATH and LABEL_ENCODER_PATH"))
		}
	case "remote":
		if c.ModelServiceURL == "" {
			errs = append(errs, errors.New("remote backend needs MODEL_SERVICE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("MODEL_BACKEND must be local or remote, got %q", c.ModelBackend))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is empty"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("TIMEOUT_MS must be positive"))
	}
	if c.MQTTEnabled && !strings.Contains(c.TopicTemplate, "{field}") {
		errs = append(errs, errors.New("RECOMMENDATION_TOPIC_TEMPLATE must contain {field}"))
	}
	return errors.Join(errs...)
}

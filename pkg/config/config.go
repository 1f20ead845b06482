package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// MongoDB configuration
	Mongo MongoConfig `mapstructure:"mongo"`

	// Accession sequencer configuration
	Sequencer SequencerConfig `mapstructure:"sequencer"`

	// HL7 sending facility configuration
	HL7 HL7Config `mapstructure:"hl7"`

	// DICOM tag editor configuration
	DICOM DICOMConfig `mapstructure:"dicom"`

	// Orthanc PACS configuration
	Orthanc OrthancConfig `mapstructure:"orthanc"`

	// Kafka outbound feed configuration
	Kafka KafkaConfig `mapstructure:"kafka"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`

	// Monitoring configuration
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	IdleTimeout    int      `mapstructure:"idle_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	UploadDir      string   `mapstructure:"upload_dir"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// MongoConfig holds MongoDB configuration
type MongoConfig struct {
	URI                string `mapstructure:"uri"`
	Database           string `mapstructure:"database"`
	PatientCollection  string `mapstructure:"patient_collection"`
	CounterCollection  string `mapstructure:"counter_collection"`
	ConnectTimeoutSecs int    `mapstructure:"connect_timeout"`
}

// SequencerConfig selects the durable counter behind accession numbers
type SequencerConfig struct {
	Backend string `mapstructure:"backend"`
}

// HL7Config holds the MSH and PV1 constants of the sending facility
type HL7Config struct {
	SendingApplication   string `mapstructure:"sending_application"`
	SendingFacility      string `mapstructure:"sending_facility"`
	ReceivingApplication string `mapstructure:"receiving_application"`
	ReceivingFacility    string `mapstructure:"receiving_facility"`
	HospitalName         string `mapstructure:"hospital_name"`
	ProcessingID         string `mapstructure:"processing_id"`
	Version              string `mapstructure:"version"`
}

// DICOMConfig holds the external tag editor settings
type DICOMConfig struct {
	DcmodifyPath string `mapstructure:"dcmodify_path"`
	Timeout      int    `mapstructure:"timeout"`
}

// OrthancConfig holds PACS connection settings
type OrthancConfig struct {
	URL      string `mapstructure:"url"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Timeout  int    `mapstructure:"timeout"`
}

// KafkaConfig holds the optional outbound HL7 feed settings
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
	HealthPath  string `mapstructure:"health_path"`
}

// Sequencer backends
const (
	SequencerPostgres = "postgres"
	SequencerMongo    = "mongo"
	SequencerMemory   = "memory"
)

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/quantum-care")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Override with environment variables
	overrideWithEnv(&config)

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 60)
	viper.SetDefault("server.idle_timeout", 120)
	viper.SetDefault("server.allowed_origins", []string{"*"})
	viper.SetDefault("server.upload_dir", os.TempDir())

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "quantum_care")
	viper.SetDefault("database.user", "quantum")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Mongo defaults
	viper.SetDefault("mongo.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "QuantumCare")
	viper.SetDefault("mongo.patient_collection", "patients")
	viper.SetDefault("mongo.counter_collection", "counters")
	viper.SetDefault("mongo.connect_timeout", 10)

	viper.SetDefault("sequencer.backend", SequencerPostgres)

	// HL7 defaults
	viper.SetDefault("hl7.sending_application", "QuantumCare")
	viper.SetDefault("hl7.sending_facility", "Quantum Care Hospital")
	viper.SetDefault("hl7.receiving_application", "Selene EHR")
	viper.SetDefault("hl7.receiving_facility", "SeleneHospital")
	viper.SetDefault("hl7.hospital_name", "Quantum Care Hospital")
	viper.SetDefault("hl7.processing_id", "P")
	viper.SetDefault("hl7.version", "2.8")

	// DICOM defaults
	viper.SetDefault("dicom.dcmodify_path", "dcmodify")
	viper.SetDefault("dicom.timeout", 30)

	// Orthanc defaults
	viper.SetDefault("orthanc.url", "http://localhost:8042")
	viper.SetDefault("orthanc.user", "orthanc")
	viper.SetDefault("orthanc.timeout", 60)

	// Kafka defaults
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topic", "hl7.adt")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")
	viper.SetDefault("monitoring.health_path", "/health")

	// Logging defaults
	viper.SetDefault("log_level", "info")
}

// overrideWithEnv overrides configuration with environment variables
func overrideWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if dbPassword := os.Getenv("DATABASE_PASSWORD"); dbPassword != "" {
		config.Database.Password = dbPassword
	}

	if mongoURI := os.Getenv("MONGO_URI"); mongoURI != "" {
		config.Mongo.URI = mongoURI
	}

	if orthancPassword := os.Getenv("ORTHANC_PASSWORD"); orthancPassword != "" {
		config.Orthanc.Password = orthancPassword
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Database.Password == "" {
		return fmt.Errorf("database password is required")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Sequencer.Backend {
	case SequencerPostgres, SequencerMongo, SequencerMemory:
	default:
		return fmt.Errorf("unknown sequencer backend: %q", config.Sequencer.Backend)
	}

	if config.Mongo.URI == "" {
		return fmt.Errorf("mongo uri is required")
	}

	if config.Kafka.Enabled && len(config.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when the feed is enabled")
	}

	return nil
}

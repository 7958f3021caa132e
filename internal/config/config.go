package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string        `json:"log_level" yaml:"log_level"`
	LogFormat string        `json:"log_format" yaml:"log_format"`
	Study     StudyConfig   `json:"study" yaml:"study"`
	Batch     BatchConfig   `json:"batch" yaml:"batch"`
	Report    ReportConfig  `json:"report" yaml:"report"`
	Storage   StorageConfig `json:"storage" yaml:"storage"`
	Publish   PublishConfig `json:"publish" yaml:"publish"`
	API       APIConfig     `json:"api" yaml:"api"`
	Metrics   MetricsConfig `json:"metrics" yaml:"metrics"`
	Issues    IssuesConfig  `json:"issues" yaml:"issues"`
}

// StudyConfig fixes the protocol of one study. It is read-only once the pipeline is built.
type StudyConfig struct {
	TaskSecs        int      `json:"task_secs" yaml:"task_secs"`
	FreeSecs        int      `json:"free_secs" yaml:"free_secs"`
	NAValue         float64  `json:"na_value" yaml:"na_value"`
	DeviceCount     int      `json:"device_count" yaml:"device_count"`
	SignalFields    int      `json:"signal_fields" yaml:"signal_fields"`
	DeviceLabels    []string `json:"device_labels" yaml:"device_labels"`
	TimestampLayout string   `json:"timestamp_layout" yaml:"timestamp_layout"`
}

type BatchConfig struct {
	Root            string `json:"root" yaml:"root"`
	StudyFile       string `json:"study_file" yaml:"study_file"`
	DirPattern      string `json:"dir_pattern" yaml:"dir_pattern"`
	ContinueOnError bool   `json:"continue_on_error" yaml:"continue_on_error"`
	LoadWorkers     int    `json:"load_workers" yaml:"load_workers"`
}

type ReportConfig struct {
	PDFPath  string `json:"pdf_path" yaml:"pdf_path"`
	XLSXPath string `json:"xlsx_path" yaml:"xlsx_path"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type PublishConfig struct {
	Kafka KafkaConfig `json:"kafka" yaml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type MetricsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

type IssuesConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

// DefaultDeviceLabels are the sixteen reader names used by the study rig.
var DefaultDeviceLabels = []string{
	"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot", "Golf", "Hotel",
	"India", "Juliet", "Kilo", "Lima", "Mike", "November", "Oscar", "Papa",
}

func DefaultStudy() StudyConfig {
	return StudyConfig{
		TaskSecs:        15 * 60,
		FreeSecs:        10 * 60,
		NAValue:         0.3,
		DeviceCount:     16,
		SignalFields:    3,
		DeviceLabels:    append([]string(nil), DefaultDeviceLabels...),
		TimestampLayout: "15:04:05",
	}
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Study:     DefaultStudy(),
		Batch: BatchConfig{
			Root:        ".",
			StudyFile:   "config.txt",
			DirPattern:  `^[0-9]{14}_[0-9]{2}$`,
			LoadWorkers: 4,
		},
		Report:  ReportConfig{PDFPath: "userstudy_result.pdf"},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:nfcexposure.db?_pragma=busy_timeout(5000)"},
		Publish: PublishConfig{Kafka: KafkaConfig{Enabled: false, Topic: "nfcexposure.results"}},
		API:     APIConfig{Enabled: false, Addr: ":8081"},
		Metrics: MetricsConfig{StoreLimit: 5000},
		Issues:  IssuesConfig{StoreLimit: 1000},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	def := DefaultStudy()
	if cfg.Study.TaskSecs <= 0 {
		cfg.Study.TaskSecs = def.TaskSecs
	}
	if cfg.Study.FreeSecs <= 0 {
		cfg.Study.FreeSecs = def.FreeSecs
	}
	if cfg.Study.DeviceCount <= 0 {
		cfg.Study.DeviceCount = def.DeviceCount
	}
	if cfg.Study.SignalFields <= 0 {
		cfg.Study.SignalFields = def.SignalFields
	}
	if cfg.Study.TimestampLayout == "" {
		cfg.Study.TimestampLayout = def.TimestampLayout
	}
	if cfg.Batch.StudyFile == "" {
		cfg.Batch.StudyFile = "config.txt"
	}
	if cfg.Batch.DirPattern == "" {
		cfg.Batch.DirPattern = `^[0-9]{14}_[0-9]{2}$`
	}
	if cfg.Batch.LoadWorkers <= 0 {
		cfg.Batch.LoadWorkers = 4
	}
	if cfg.Metrics.StoreLimit <= 0 {
		cfg.Metrics.StoreLimit = 5000
	}
	if cfg.Issues.StoreLimit <= 0 {
		cfg.Issues.StoreLimit = 1000
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
}

func Validate(cfg *Config) error {
	s := cfg.Study
	if s.NAValue == 0 || s.NAValue == 1 {
		return fmt.Errorf("study.na_value must differ from 0 and 1, got %v", s.NAValue)
	}
	if len(s.DeviceLabels) > 0 && len(s.DeviceLabels) != s.DeviceCount {
		return fmt.Errorf("study.device_labels has %d entries, device_count is %d", len(s.DeviceLabels), s.DeviceCount)
	}
	if _, err := regexp.Compile(cfg.Batch.DirPattern); err != nil {
		return fmt.Errorf("batch.dir_pattern: %w", err)
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Storage.Enabled && cfg.Storage.Driver == "" {
		return errors.New("storage.driver required when storage.enabled is true")
	}
	if cfg.Publish.Kafka.Enabled {
		if len(cfg.Publish.Kafka.Brokers) == 0 || cfg.Publish.Kafka.Topic == "" {
			return errors.New("publish.kafka requires brokers, topic")
		}
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text, got %q", cfg.LogFormat)
	}
	return nil
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}

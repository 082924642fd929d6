// Package config handles pipeline configuration
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/divyashie/openmeet/internal/errors"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`

	// Audio capture
	SampleRate    int           `yaml:"sample_rate"`
	ChunkDuration time.Duration `yaml:"chunk_duration"`
	ChunkOverlap  time.Duration `yaml:"chunk_overlap"`

	// Transcription (whisper.cpp subprocess)
	WhisperBinary  string        `yaml:"whisper_binary"`
	WhisperModel   string        `yaml:"whisper_model"`
	Language       string        `yaml:"language"`
	WhisperThreads int           `yaml:"whisper_threads"`
	WhisperTimeout time.Duration `yaml:"whisper_timeout"`

	// Diarization (pyannote sidecar)
	PyannoteURL     string        `yaml:"pyannote_url"`
	PyannoteTimeout time.Duration `yaml:"pyannote_timeout"`
	// DiarizationStride is how many chunks elapse between incremental
	// diarization passes over the recording so far.
	DiarizationStride int `yaml:"diarization_stride"`

	// Summarization (Ollama)
	OllamaURL     string        `yaml:"ollama_url"`
	OllamaModel   string        `yaml:"ollama_model"`
	SummaryFormat string        `yaml:"summary_format"` // detailed|bullets|executive|email
	OllamaTimeout time.Duration `yaml:"ollama_timeout"`

	// Scheduling
	MaxConcurrentTranscriptions int `yaml:"max_concurrent_transcriptions"`

	// Storage
	DataDir string `yaml:"data_dir"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

func Load() *Config {
	return &Config{
		HTTPAddr:                    getEnv("HTTP_ADDR", ":8484"),
		SampleRate:                  getEnvInt("SAMPLE_RATE", 16000),
		ChunkDuration:               getEnvDuration("CHUNK_DURATION", 5*time.Second),
		ChunkOverlap:                getEnvDuration("CHUNK_OVERLAP", 500*time.Millisecond),
		WhisperBinary:               getEnv("WHISPER_BINARY", "whisper.cpp/build/bin/whisper-cli"),
		WhisperModel:                getEnv("WHISPER_MODEL", "whisper.cpp/models/ggml-base.en.bin"),
		Language:                    getEnv("LANGUAGE", "en"),
		WhisperThreads:              getEnvInt("WHISPER_THREADS", 4),
		WhisperTimeout:              getEnvDuration("WHISPER_TIMEOUT", 20*time.Second),
		PyannoteURL:                 getEnv("PYANNOTE_URL", "http://localhost:8388"),
		PyannoteTimeout:             getEnvDuration("PYANNOTE_TIMEOUT", 300*time.Second),
		DiarizationStride:           getEnvInt("DIARIZATION_STRIDE", 6),
		OllamaURL:                   getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:                 getEnv("OLLAMA_MODEL", "llama3.2"),
		SummaryFormat:               getEnv("SUMMARY_FORMAT", "detailed"),
		OllamaTimeout:               getEnvDuration("OLLAMA_TIMEOUT", 120*time.Second),
		MaxConcurrentTranscriptions: getEnvInt("MAX_CONCURRENT_TRANSCRIPTIONS", 2),
		DataDir:                     getEnv("DATA_DIR", defaultDataDir()),
		LogLevel:                    getEnv("LOG_LEVEL", "info"),
		LogFile:                     getEnv("LOG_FILE", ""),
	}
}

// ApplyFile overlays values from a YAML file onto the config. Zero-valued
// fields in the file leave the existing values untouched, so env settings
// survive a partial file.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ConfigInvalid, "read config file %s", path)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return apperrors.Wrapf(err, apperrors.ConfigInvalid, "parse config file %s", path)
	}

	merge(c, &overlay)
	return nil
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return apperrors.Newf(apperrors.ConfigInvalid, "sample rate must be positive, got %d", c.SampleRate)
	}
	if c.ChunkDuration <= 0 {
		return apperrors.Newf(apperrors.ConfigInvalid, "chunk duration must be positive, got %s", c.ChunkDuration)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkDuration {
		return apperrors.Newf(apperrors.ConfigInvalid, "chunk overlap %s must be in [0, chunk duration)", c.ChunkOverlap)
	}
	if c.DiarizationStride < 1 {
		return apperrors.Newf(apperrors.ConfigInvalid, "diarization stride must be >= 1, got %d", c.DiarizationStride)
	}
	if c.MaxConcurrentTranscriptions < 1 {
		return apperrors.Newf(apperrors.ConfigInvalid, "max concurrent transcriptions must be >= 1, got %d", c.MaxConcurrentTranscriptions)
	}
	switch c.SummaryFormat {
	case "detailed", "bullets", "executive", "email":
	default:
		return apperrors.Newf(apperrors.ConfigInvalid, "unknown summary format %q", c.SummaryFormat)
	}
	return nil
}

// DatabasePath returns the SQLite path under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "openmeet.db")
}

// RecordingsDir returns the directory for per-session WAV artifacts.
func (c *Config) RecordingsDir() string {
	return filepath.Join(c.DataDir, "recordings")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "openmeet-data"
	}
	return filepath.Join(home, ".openmeet")
}

func merge(dst, src *Config) {
	if src.HTTPAddr != "" {
		dst.HTTPAddr = src.HTTPAddr
	}
	if src.SampleRate != 0 {
		dst.SampleRate = src.SampleRate
	}
	if src.ChunkDuration != 0 {
		dst.ChunkDuration = src.ChunkDuration
	}
	if src.ChunkOverlap != 0 {
		dst.ChunkOverlap = src.ChunkOverlap
	}
	if src.WhisperBinary != "" {
		dst.WhisperBinary = src.WhisperBinary
	}
	if src.WhisperModel != "" {
		dst.WhisperModel = src.WhisperModel
	}
	if src.Language != "" {
		dst.Language = src.Language
	}
	if src.WhisperThreads != 0 {
		dst.WhisperThreads = src.WhisperThreads
	}
	if src.WhisperTimeout != 0 {
		dst.WhisperTimeout = src.WhisperTimeout
	}
	if src.PyannoteURL != "" {
		dst.PyannoteURL = src.PyannoteURL
	}
	if src.PyannoteTimeout != 0 {
		dst.PyannoteTimeout = src.PyannoteTimeout
	}
	if src.DiarizationStride != 0 {
		dst.DiarizationStride = src.DiarizationStride
	}
	if src.OllamaURL != "" {
		dst.OllamaURL = src.OllamaURL
	}
	if src.OllamaModel != "" {
		dst.OllamaModel = src.OllamaModel
	}
	if src.SummaryFormat != "" {
		dst.SummaryFormat = src.SummaryFormat
	}
	if src.OllamaTimeout != 0 {
		dst.OllamaTimeout = src.OllamaTimeout
	}
	if src.MaxConcurrentTranscriptions != 0 {
		dst.MaxConcurrentTranscriptions = src.MaxConcurrentTranscriptions
	}
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFile != "" {
		dst.LogFile = src.LogFile
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// Bare numbers are taken as seconds, matching older installs.
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return def
}

package keyrank

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/keyrank/graph"
	"github.com/brunobiangulo/keyrank/ngram"
	"github.com/brunobiangulo/keyrank/sentence"
)

// Config holds all configuration for the keyrank engine.
type Config struct {
	// Language is the language code of the input text ("en", "nl").
	Language string `json:"language" yaml:"language"`

	// DBPath is the full path to the SQLite result store.
	// If empty, defaults to ~/.keyrank/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.keyrank/,
	// "local" uses the current working directory, "none" runs without a
	// result store.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// WordNetDir points at a WordNet dict directory holding index.noun and
	// index.adj. Empty disables the semantic pass.
	WordNetDir string `json:"wordnet_dir" yaml:"wordnet_dir"`

	// SenseStore looks senses up in the result store instead of memory,
	// importing them from WordNetDir the first time.
	SenseStore bool `json:"sense_store" yaml:"sense_store"`

	// DisableSemantic skips the semantic pass even when a dictionary is
	// configured.
	DisableSemantic bool `json:"disable_semantic" yaml:"disable_semantic"`

	// Run limits
	TimeoutMS int `json:"timeout_ms" yaml:"timeout_ms"` // per run, 0 = no limit
	QueueSize int `json:"queue_size" yaml:"queue_size"` // pending runs before submitters block

	// Ranking
	ReductionFactor      float64 `json:"reduction_factor" yaml:"reduction_factor"`           // share of nodes kept for the collocation threshold
	Window               int     `json:"window" yaml:"window"`                               // co-occurrence window in content tokens
	ConvergenceThreshold float64 `json:"convergence_threshold" yaml:"convergence_threshold"` // max rank change that ends iteration
	MaxIterations        int     `json:"max_iterations" yaml:"max_iterations"`
	MaxPhraseLength      int     `json:"max_phrase_length" yaml:"max_phrase_length"`

	// ProfileDim is the dimension of stored keyphrase profile vectors.
	ProfileDim int `json:"profile_dim" yaml:"profile_dim"`
}

// DefaultConfig returns a Config for English text with a result store in
// ~/.keyrank/keyrank.db.
func DefaultConfig() Config {
	return Config{
		Language:             "en",
		DBName:               "keyrank",
		StorageDir:           "home",
		TimeoutMS:            10000,
		QueueSize:            16,
		ReductionFactor:      0.8,
		Window:               sentence.DefaultWindow,
		ConvergenceThreshold: graph.DefaultThreshold,
		MaxIterations:        graph.DefaultMaxIterations,
		MaxPhraseLength:      ngram.MaxLength,
		ProfileDim:           256,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Language == "":
		return fmt.Errorf("%w: language is required", ErrInvalidConfig)
	case c.ReductionFactor <= 0 || c.ReductionFactor >= 1:
		return fmt.Errorf("%w: reduction_factor must be in (0, 1), got %v", ErrInvalidConfig, c.ReductionFactor)
	case c.TimeoutMS < 0:
		return fmt.Errorf("%w: timeout_ms must not be negative", ErrInvalidConfig)
	case c.Window != 0 && c.Window < 2:
		return fmt.Errorf("%w: window must be at least 2, got %d", ErrInvalidConfig, c.Window)
	case c.ConvergenceThreshold < 0:
		return fmt.Errorf("%w: convergence_threshold must not be negative", ErrInvalidConfig)
	case c.MaxIterations < 0:
		return fmt.Errorf("%w: max_iterations must not be negative", ErrInvalidConfig)
	case c.MaxPhraseLength < 0 || c.MaxPhraseLength > ngram.MaxLength:
		return fmt.Errorf("%w: max_phrase_length must be in [0, %d]", ErrInvalidConfig, ngram.MaxLength)
	case c.QueueSize < 0 || c.ProfileDim < 0:
		return fmt.Errorf("%w: queue_size and profile_dim must not be negative", ErrInvalidConfig)
	case c.SenseStore && c.storeDisabled():
		return fmt.Errorf("%w: sense_store needs a result store", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) storeDisabled() bool {
	return c.DBPath == "" && c.StorageDir == "none"
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "keyrank"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".keyrank", name+".db")
	}
}

// LoadConfig reads a YAML config file over DefaultConfig. Fields missing
// from the file keep their defaults. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from KEYRANK_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("KEYRANK_LANGUAGE"); v != "" {
		c.Language = v
	}
	if v := os.Getenv("KEYRANK_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("KEYRANK_STORAGE_DIR"); v != "" {
		c.StorageDir = v
	}
	if v := os.Getenv("KEYRANK_WORDNET_DIR"); v != "" {
		c.WordNetDir = v
	}
	if v := os.Getenv("KEYRANK_TIMEOUT_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: KEYRANK_TIMEOUT_MS: %v", ErrInvalidConfig, err)
		}
		c.TimeoutMS = ms
	}
	if v := os.Getenv("KEYRANK_DISABLE_SEMANTIC"); v != "" {
		off, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: KEYRANK_DISABLE_SEMANTIC: %v", ErrInvalidConfig, err)
		}
		c.DisableSemantic = off
	}
	return nil
}

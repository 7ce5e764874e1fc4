// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package validate

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ConfigEnv names the environment variable consulted when no config path is
// given.
const ConfigEnv = "X509_PATH_VALIDATOR_CONFIG"

// ErrInvalidConfig is wrapped by every schema or range violation.
var ErrInvalidConfig = errors.New("validate: invalid configuration")

//go:embed schema/config.schema.json
var configSchema []byte

// Hash names accepted in policy.trustedHashes.
var knownHashes = []string{"MD2", "MD5", "SHA-1", "SHA-224", "SHA-256", "SHA-384", "SHA-512", "Pure"}

// configFormat represents supported configuration file formats.
type configFormat int

const (
	// configFormatJSON represents JSON configuration format (.json)
	configFormatJSON configFormat = iota
	// configFormatYAML represents YAML configuration format (.yaml, .yml)
	configFormatYAML
)

// Config is the on-disk configuration of the validator.
//
// The file shape is checked against an embedded JSON Schema, then value
// ranges are checked with struct tags. Supported file extensions: .json,
// .yaml, .yml
type Config struct {
	// Policy: Validation restrictions
	Policy struct {
		RequireRevocationInformation bool `json:"requireRevocationInformation" yaml:"requireRevocationInformation"`
		OCSPAllIntermediates         bool `json:"ocspAllIntermediates" yaml:"ocspAllIntermediates"`
		// MinimumKeyStrength: Bits of security required of issuer keys
		MinimumKeyStrength int `json:"minimumKeyStrength" yaml:"minimumKeyStrength" validate:"gte=0,lte=512"`
		// TrustedHashes: Overrides the hashes derived from MinimumKeyStrength
		TrustedHashes []string `json:"trustedHashes,omitempty" yaml:"trustedHashes,omitempty" validate:"omitempty,dive,hash_name"`
		// MaxOCSPAge: Age bound in seconds for OCSP responses without nextUpdate
		MaxOCSPAge int `json:"maxOcspAgeSeconds" yaml:"maxOcspAgeSeconds" validate:"gte=0"`
	} `json:"policy" yaml:"policy"`

	// Network: Online revocation and AIA settings
	Network struct {
		// OCSPTimeout: Per-fetch timeout in seconds, zero stays offline
		OCSPTimeout int `json:"ocspTimeoutSeconds" yaml:"ocspTimeoutSeconds" validate:"gte=0,lte=300"`
		// AIAFetchLimit: Issuers downloaded at most via AIA, zero disables it
		AIAFetchLimit int `json:"aiaFetchLimit" yaml:"aiaFetchLimit" validate:"gte=0,lte=10"`
		MaxRedirects  int `json:"maxRedirects" yaml:"maxRedirects" validate:"gte=0,lte=10"`
	} `json:"network" yaml:"network"`

	// Cache: CRL cache settings
	Cache struct {
		// Path: bbolt database file; empty selects the in-memory LRU cache
		Path string `json:"path,omitempty" yaml:"path,omitempty"`
		// MaxSize: LRU capacity, negative for unlimited
		MaxSize int `json:"maxSize" yaml:"maxSize" validate:"gte=-1"`
		// FreshFor: Seconds a cached CRL is served before a refetch
		FreshFor int `json:"freshForSeconds" yaml:"freshForSeconds" validate:"gte=0"`
	} `json:"cache" yaml:"cache"`
}

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() *Config {
	config := &Config{}
	config.Policy.MinimumKeyStrength = DefaultMinimumKeyStrength
	config.Network.MaxRedirects = 1
	config.Cache.MaxSize = 100
	config.Cache.FreshFor = int((24 * time.Hour).Seconds())
	return config
}

// Restrictions converts the policy section.
func (c *Config) Restrictions() Restrictions {
	r := NewRestrictions(
		c.Policy.RequireRevocationInformation,
		c.Policy.MinimumKeyStrength,
		c.Policy.OCSPAllIntermediates,
		time.Duration(c.Policy.MaxOCSPAge)*time.Second,
	)
	if len(c.Policy.TrustedHashes) > 0 {
		r.TrustedHashes = slices.Clone(c.Policy.TrustedHashes)
	}
	return r
}

// OCSPTimeout returns the per-fetch network timeout.
func (c *Config) OCSPTimeout() time.Duration {
	return time.Duration(c.Network.OCSPTimeout) * time.Second
}

// detectConfigFormat determines the configuration file format based on file extension.
func detectConfigFormat(configPath string) configFormat {
	ext := strings.ToLower(filepath.Ext(configPath))
	switch ext {
	case ".yaml", ".yml":
		return configFormatYAML
	default:
		return configFormatJSON
	}
}

// checkSchema validates the raw document against the embedded schema.
//
// YAML documents are decoded to generic values first so both formats go
// through the same JSON Schema.
func checkSchema(data []byte, format configFormat) error {
	var document gojsonschema.JSONLoader
	switch format {
	case configFormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
		document = gojsonschema.NewGoLoader(doc)
	default:
		document = gojsonschema.NewBytesLoader(data)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(configSchema), document)
	if err != nil {
		return fmt.Errorf("failed to parse JSON config file: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
	}
	return nil
}

// unmarshalConfig unmarshals configuration data based on the specified format.
func unmarshalConfig(data []byte, config *Config, format configFormat) error {
	switch format {
	case configFormatYAML:
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", err)
		}
	}
	return nil
}

func newConfigValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("hash_name", func(fl validator.FieldLevel) bool {
		return slices.Contains(knownHashes, fl.Field().String())
	})
	return v
}

// checkRanges applies the struct tag rules to config.
func checkRanges(config *Config) error {
	err := newConfigValidator().Struct(config)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s=%s, got %v", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s, got %v", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// LoadConfig loads the configuration from a JSON or YAML file or applies
// defaults.
//
// Parameters:
//   - configPath: Path to the configuration file (optional, can be empty)
//     Supported formats: .json, .yaml, .yml
//
// Returns:
//   - *Config: Loaded configuration with defaults applied
//   - error: Read, parse, schema or range failure
//
// Configuration Priority:
//  1. Default values are set
//  2. X509_PATH_VALIDATOR_CONFIG environment variable is checked if configPath is empty
//  3. Config file values override defaults (if file exists and is valid)
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		configPath = os.Getenv(ConfigEnv)
	}
	if configPath == "" {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	format := detectConfigFormat(configPath)
	if err := checkSchema(data, format); err != nil {
		return nil, err
	}
	if err := unmarshalConfig(data, config, format); err != nil {
		return nil, err
	}
	if err := checkRanges(config); err != nil {
		return nil, err
	}
	return config, nil
}

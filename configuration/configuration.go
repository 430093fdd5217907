/*
Package configuration resolves the storage settings the gateway is built from.

Settings are read from an appsettings style file and then overlaid with the
process environment, so a deployment can ship a file with defaults and inject
the connection string as a secret:

	{
	  "AzureStorageSettings": {
	    "BLOB_CONNECTION_STRING": "DefaultEndpointsProtocol=https;AccountName=...",
	    "BLOB_CONTAINER_NAME": "videos"
	  }
	}

Nested keys are flattened with ":" separators and compared case-insensitively.
Environment variables use "__" in place of ":", for example
AzureStorageSettings__BLOB_CONTAINER_NAME.
*/
package configuration

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ConnectionStringKey is the storage account connection string setting.
	ConnectionStringKey = "AzureStorageSettings:BLOB_CONNECTION_STRING"

	// ContainerNameKey is the blob container name setting.
	ContainerNameKey = "AzureStorageSettings:BLOB_CONTAINER_NAME"

	keySeparator    = ":"
	envKeySeparator = "__"
)

// ErrMissingSetting is returned by Validate when a required setting is empty.
var ErrMissingSetting = errors.New("missing setting")

// Settings is a flattened, read-only view of the resolved configuration.
type Settings struct {
	values map[string]string
}

// AzureStorageSettings holds the two values the gateway needs.
type AzureStorageSettings struct {
	ConnectionString string
	ContainerName    string
}

// Validate checks both settings are present.
func (a AzureStorageSettings) Validate() error {
	if a.ConnectionString == "" {
		return fmt.Errorf("%w: %s", ErrMissingSetting, ConnectionStringKey)
	}
	if a.ContainerName == "" {
		return fmt.Errorf("%w: %s", ErrMissingSetting, ContainerNameKey)
	}
	return nil
}

/*
Load reads the settings file at path and overlays the OS environment.

A missing file is not an error, the environment alone may carry every setting.
JSON and YAML files are both accepted.
*/
func Load(path string) (*Settings, error) {
	return load(path, environ())
}

/*
LoadWithEnv is Load with a provided environment map instead of the OS
environment. This is useful for library usage where the environment is
controlled programmatically.
*/
func LoadWithEnv(path string, env map[string]string) (*Settings, error) {
	return load(path, env)
}

func load(path string, env map[string]string) (*Settings, error) {
	s := &Settings{values: make(map[string]string)}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// environment only
		case err != nil:
			return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
		default:
			if err := s.parse(data); err != nil {
				return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
			}
		}
	}

	for name, value := range env {
		s.set(strings.ReplaceAll(name, envKeySeparator, keySeparator), value)
	}

	return s, nil
}

// Get returns the value for a ":" separated key, or "" if it is not set.
func (s *Settings) Get(key string) string {
	return s.values[normalizeKey(key)]
}

// AzureStorage returns the storage account settings.
func (s *Settings) AzureStorage() AzureStorageSettings {
	return AzureStorageSettings{
		ConnectionString: s.Get(ConnectionStringKey),
		ContainerName:    s.Get(ContainerNameKey),
	}
}

func (s *Settings) parse(data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}

	return s.flatten("", raw)
}

// flatten walks nested objects and arrays, arrays are keyed by index.
func (s *Settings) flatten(prefix string, value any) error {
	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			if err := s.flatten(joinKey(prefix, k), child); err != nil {
				return err
			}
		}
	case []any:
		for i, child := range v {
			if err := s.flatten(joinKey(prefix, strconv.Itoa(i)), child); err != nil {
				return err
			}
		}
	case nil:
		s.set(prefix, "")
	case string:
		s.set(prefix, v)
	case bool, int, int64, uint64, float64:
		s.set(prefix, fmt.Sprint(v))
	default:
		return fmt.Errorf("setting '%s' has unsupported type %T", prefix, value)
	}

	return nil
}

func (s *Settings) set(key, value string) {
	if key == "" {
		return
	}
	s.values[normalizeKey(key)] = value
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + keySeparator + key
}

func normalizeKey(key string) string {
	return strings.ToLower(key)
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[name] = value
	}
	return env
}

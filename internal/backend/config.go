package backend

import (
	"errors"
	"fmt"
	"strings"

	"hisob/internal/config"
)

// ErrInvalidBackend reports an unknown DATA_BACKEND or a backend missing its
// connection setting.
var ErrInvalidBackend = errors.New("invalid backend")

// ParseBackendType accepts the DATA_BACKEND values, case-insensitively.
func ParseBackendType(s string) (BackendType, error) {
	t := BackendType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q, want one of %s", ErrInvalidBackend, s,
			strings.Join(GetBackendTypeStrings(), ", "))
	}
	return t, nil
}

// FromAppConfig picks the backend settings out of the application config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	t, err := ParseBackendType(appConfig.DataBackend)
	if err != nil {
		return Config{}, err
	}
	c := Config{Type: t}
	switch t {
	case SQLiteBackend:
		c.SQLiteDBPath = appConfig.SQLiteDBPath
	case PostgresBackend:
		c.PostgresURL = appConfig.PostgresURL
	}
	return c, nil
}

func (c Config) Validate() error {
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("%w: sqlite needs SQLITE_DB_PATH", ErrInvalidBackend)
		}
	case PostgresBackend:
		if c.PostgresURL == "" {
			return fmt.Errorf("%w: postgres needs POSTGRES_URL", ErrInvalidBackend)
		}
	case MemoryBackend:
	default:
		_, err := ParseBackendType(string(c.Type))
		return err
	}
	return nil
}

func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, PostgresBackend, MemoryBackend}
}

func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}

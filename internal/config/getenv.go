package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrEnvRequired = errors.New("env is required")

// getenv накапливает ошибки разбора, чтобы сообщить о всех проблемах конфигурации разом.
type getenv struct {
	lookup func(key string) (string, bool)
	errs   []error
}

func newGetenv() *getenv {
	return &getenv{lookup: os.LookupEnv}
}

func (ge *getenv) Err() error {
	return errors.Join(ge.errs...)
}

type parseFunc[T any] func(s string) (T, error)

func getValue[T any](ge *getenv, key string, required bool, defaultValue T, parse parseFunc[T]) T {
	s, ok := ge.lookup(key)
	if !ok || s == "" {
		if required {
			ge.errs = append(ge.errs, fmt.Errorf("%s %w", key, ErrEnvRequired))
		}
		return defaultValue
	}
	v, err := parse(s)
	if err != nil {
		ge.errs = append(ge.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func (ge *getenv) String(key string, required bool, defaultValue string) string {
	return getValue(ge, key, required, defaultValue, func(s string) (string, error) {
		return s, nil
	})
}

// Strings разбивает значение по пробелам и запятым.
func (ge *getenv) Strings(key string, required bool, defaultValue []string) []string {
	return getValue(ge, key, required, defaultValue, func(s string) ([]string, error) {
		return strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		}), nil
	})
}

func (ge *getenv) Int(key string, required bool, defaultValue int) int {
	return getValue(ge, key, required, defaultValue, strconv.Atoi)
}

func (ge *getenv) LogLevel(key string, required bool, defaultValue slog.Level) slog.Level {
	return getValue(ge, key, required, defaultValue, func(s string) (slog.Level, error) {
		var v slog.Level
		err := v.UnmarshalText([]byte(s))
		return v, err
	})
}

func (ge *getenv) Bool(key string, required bool, defaultValue bool) bool {
	return getValue(ge, key, required, defaultValue, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q, want: true/false, yes/no, on/off, 1/0", s)
		}
	})
}

func (ge *getenv) Duration(key string, required bool, defaultValue time.Duration) time.Duration {
	return getValue(ge, key, required, defaultValue, time.ParseDuration)
}

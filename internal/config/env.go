package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/golobby/cast"
)

// EnvPrefix is prepended to every env tag, e.g. TDC_API_URL
const EnvPrefix = "TDC"

// ErrInvalidConfig is returned when a loaded value fails validation
var ErrInvalidConfig = errors.New("invalid config")

var durationType = reflect.TypeOf(time.Duration(0))

// loadFromEnv overrides fields that carry an env tag with the matching
// environment variable, when it is set and non-empty.
func loadFromEnv(cfg *Config, prefix string) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("env")
		if tag == "" {
			continue
		}
		name := strings.ToUpper(tag)
		if prefix != "" {
			name = prefix + "_" + name
		}

		value, ok := os.LookupEnv(name)
		if !ok || value == "" {
			continue
		}
		if err := setFieldValue(v.Field(i), value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// setFieldValue converts and sets a field value
func setFieldValue(field reflect.Value, strValue string) error {
	if !field.CanSet() {
		return fmt.Errorf("field cannot be set")
	}

	if field.Type() == durationType {
		d, err := time.ParseDuration(strValue)
		if err != nil {
			return fmt.Errorf("cannot convert %q to duration: %w", strValue, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	converted, err := cast.FromType(strValue, field.Type())
	if err != nil {
		return fmt.Errorf("cannot convert value to type %v: %w", field.Type(), err)
	}
	field.Set(reflect.ValueOf(converted).Convert(field.Type()))
	return nil
}

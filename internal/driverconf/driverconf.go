// Package driverconf decodes and validates driver construction arguments.
package driverconf

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/gobeaver/diskkit"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the `validate` struct tags of v and reports the first
// violation as a *diskkit.ConfigError attributed to driver.
func Validate(driver string, v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return diskkit.NewConfigError(driver, fieldName(fe), "failed %q constraint (value %v)", fe.Tag(), fe.Value())
	}
	return &diskkit.ConfigError{Driver: driver, Err: err}
}

func fieldName(fe validator.FieldError) string {
	return strings.ToLower(fe.Field())
}

// Decode copies the entries of input onto out, a pointer to a struct with
// mapstructure tags. Unknown keys are ignored; values are weakly typed so
// "2" decodes into an int field. Permission bits may be given as octal
// strings such as "0644".
func Decode(driver string, input any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			fileModeDecodeHook(),
			visibilityDecodeHook(),
		),
	})
	if err != nil {
		return &diskkit.ConfigError{Driver: driver, Err: err}
	}
	if err := decoder.Decode(input); err != nil {
		return &diskkit.ConfigError{Driver: driver, Err: err}
	}
	return nil
}

// IsMap reports whether v is a map keyed by strings.
func IsMap(v any) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	return t.Kind() == reflect.Map && t.Key().Kind() == reflect.String
}

func fileModeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(fs.FileMode(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			digits := strings.TrimLeft(strings.TrimPrefix(v, "0o"), "0")
			if digits == "" {
				return fs.FileMode(0), nil
			}
			n, err := strconv.ParseUint(digits, 8, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid permission %q: %w", v, err)
			}
			return fs.FileMode(n), nil
		default:
			return data, nil
		}
	}
}

func visibilityDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(diskkit.Visibility("")) {
			return data, nil
		}
		s, ok := data.(string)
		if !ok || s == "" {
			return data, nil
		}
		return diskkit.ParseVisibility(s)
	}
}

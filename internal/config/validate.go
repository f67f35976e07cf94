package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

type check func(v any) error

// checks holds the constraints for keys whose values the server cannot run
// with. Keys not listed accept any value of the right type.
var checks = map[string]check{
	"log_level":                 oneOf("debug", "info", "warn", "error"),
	"max_concurrent":            wholeAtLeast(1),
	"http.listen":               nonEmpty,
	"catalog.path":              nonEmpty,
	"openai.base_url":           httpURL,
	"group.price_per_1k_tokens": atLeast(0),
	"group.rounds":              wholeAtLeast(1),
}

// Keys returns every dot-separated settings key, sorted.
func Keys() []string {
	flat := defaultValues()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func defaultValues() map[string]any {
	m, err := ToMap(defaults())
	if err != nil {
		panic(err)
	}
	return Flatten(m)
}

// Validate reports every setting in cfg the server cannot run with.
func Validate(cfg *Config) error {
	values, err := ListValues(cfg, false)
	if err != nil {
		return err
	}
	var errs []error
	for _, k := range Keys() {
		if err := checkValue(k, values[k]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// parseValue converts raw to the type key holds in the settings file and
// checks it.
func parseValue(key, raw string) (any, error) {
	def, ok := defaultValues()[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	var v any
	switch def.(type) {
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a boolean", key, raw)
		}
		v = b
	case float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a number", key, raw)
		}
		v = f
	default:
		v = raw
	}
	if err := checkValue(key, v); err != nil {
		return nil, err
	}
	return v, nil
}

func checkValue(key string, v any) error {
	c, ok := checks[key]
	if !ok {
		return nil
	}
	if err := c(v); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func oneOf(allowed ...string) check {
	return func(v any) error {
		s, _ := v.(string)
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s, got %q", strings.Join(allowed, ", "), s)
	}
}

func nonEmpty(v any) error {
	if s, _ := v.(string); strings.TrimSpace(s) == "" {
		return errors.New("must not be empty")
	}
	return nil
}

func atLeast(min float64) check {
	return func(v any) error {
		f, _ := v.(float64)
		if f < min {
			return fmt.Errorf("must be at least %v, got %v", min, f)
		}
		return nil
	}
}

func wholeAtLeast(min float64) check {
	return func(v any) error {
		f, _ := v.(float64)
		if f != math.Trunc(f) {
			return fmt.Errorf("must be a whole number, got %v", f)
		}
		return atLeast(min)(v)
	}
}

func httpURL(v any) error {
	s, _ := v.(string)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an http or https URL, got %q", s)
	}
	return nil
}

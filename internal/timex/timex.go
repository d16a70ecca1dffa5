// Package timex contains time helpers: a config-friendly Duration and
// RFC3339 formatting that stays within the range the format can express.
package timex

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	ErrFailToParse    = errors.New("fail to parse rfc3339 instant")
	ErrTimeOutOfRange = errors.New("time out of rfc3339 range")
)

// RFC3339 cannot express years outside 0000..9999.
var (
	minInstant = time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxInstant = time.Date(9999, time.December, 31, 23, 59, 59, 999999999, time.UTC)
)

// Duration wraps time.Duration so it can be read from JSON, YAML and TOML
// either as a string ("15m", "1h30m") or as an integer number of nanoseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		return d.UnmarshalText([]byte(value))
	default:
		return fmt.Errorf("invalid duration: %v", v)
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalText is used by yaml.v3, BurntSushi/toml and caarlos0/env.
// A bare integer is read as nanoseconds.
func (d *Duration) UnmarshalText(text []byte) error {
	if n, err := strconv.ParseInt(string(text), 10, 64); err == nil {
		d.Duration = time.Duration(n)
		return nil
	}
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func NowUTC() time.Time {
	return time.Now().UTC()
}

// FormatRFC3339 renders t in UTC with nanosecond precision.
func FormatRFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func ParseRFC3339(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrFailToParse, err)
	}
	return t.UTC(), nil
}

// AddChecked returns t+d, failing when the sum wraps around or leaves the
// range representable as RFC3339.
func AddChecked(t time.Time, d time.Duration) (time.Time, error) {
	out := t.Add(d)
	if (d > 0 && !out.After(t)) || (d < 0 && !out.Before(t)) {
		return time.Time{}, fmt.Errorf("%w: %s + %s wraps", ErrTimeOutOfRange, FormatRFC3339(t), d)
	}
	if out.Before(minInstant) || out.After(maxInstant) {
		return time.Time{}, fmt.Errorf("%w: %s + %s", ErrTimeOutOfRange, FormatRFC3339(t), d)
	}
	return out.UTC(), nil
}

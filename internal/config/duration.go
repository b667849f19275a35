package config

import (
	"fmt"
	"time"

	"github.com/xhit/go-str2duration/v2"
)

// Duration is a time.Duration that also accepts day and week units, so token
// lifetimes can be written as "7d" as well as "168h".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := str2duration.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}

	*d = Duration(v)

	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

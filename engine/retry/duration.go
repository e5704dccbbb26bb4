package retry

import (
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/casarerpa/engine/engine/core"
)

// ParseDuration parses a human-friendly duration string from workflow
// config (e.g. "2m30s", "1h") into a time.Duration, accepting the same
// extended units (days, weeks) workflow authors tend to reach for.
func ParseDuration(s string) (time.Duration, error) {
	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0, core.NewError(err, core.ErrWorkflowValidation, map[string]any{"value": s})
	}
	return d, nil
}

// Package lifecycle holds shared timing constants for fx start/stop hooks.
package lifecycle

import "time"

// DefaultTimeout bounds OnStart/OnStop work such as pinging the database or draining servers.
const DefaultTimeout = 10 * time.Second

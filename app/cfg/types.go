package cfg

import (
	"fmt"
	"strings"
	"time"
)

type Cfg struct {
	// Storage configuration
	DBPath      string
	BusyTimeout time.Duration

	// Feed configuration
	FeedsDir           string
	BaseURL            string
	PageSize           int
	RequestTimeout     time.Duration
	ReaderAllowPrivate bool

	// Application configuration
	Port              string
	PublicURL         string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	JSONLogs  bool
	Version   string
}

// PublicBaseURL is the externally visible URL of the service without a
// trailing slash.
func (c *Cfg) PublicBaseURL() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	return fmt.Sprintf("http://localhost:%s", c.Port)
}

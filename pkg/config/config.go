// Package config holds the server's immutable runtime configuration. The
// configuration is constructed once at startup from the command line and
// passed by shared reference; nothing mutates it afterwards.
package config

import (
	"errors"
	"fmt"

	"github.com/ostep-web/wserver/pkg/scheduling"
)

const (
	// DefaultPort is the listen port used when none is given.
	DefaultPort = 10000
	// DefaultWorkers is the worker pool size used when none is given.
	DefaultWorkers = 1
	// DefaultQueueSlots is the queue capacity used when none is given.
	DefaultQueueSlots = 1
)

var (
	errWorkersNotPositive = errors.New("the number of worker threads must be positive")
	errSlotsNotPositive   = errors.New("the number of buffer slots must be positive")
)

// Config is the complete server configuration.
type Config struct {
	// DocRoot is the document root. The server chdirs here at startup and
	// resolves all request paths relative to it.
	DocRoot string
	// Port is the TCP listen port.
	Port int
	// Workers is the number of worker goroutines draining the queue.
	Workers int
	// QueueSlots is the capacity of the bounded scheduling queue.
	QueueSlots int
	// Discipline selects the queueing discipline.
	Discipline scheduling.Discipline
	// DebugAddr, when non-empty, is the listen address of the side HTTP
	// listener serving metrics and log snapshots. It is not part of the
	// HTTP/1.0 data path.
	DebugAddr string
}

// Default returns a configuration with the documented defaults applied.
func Default() *Config {
	return &Config{
		DocRoot:    ".",
		Port:       DefaultPort,
		Workers:    DefaultWorkers,
		QueueSlots: DefaultQueueSlots,
		Discipline: scheduling.FIFO,
	}
}

// Validate checks the configuration's value ranges.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port number %d: must be in 0-65535", c.Port)
	}
	if c.Workers <= 0 {
		return errWorkersNotPositive
	}
	if c.QueueSlots <= 0 {
		return errSlotsNotPositive
	}
	return nil
}

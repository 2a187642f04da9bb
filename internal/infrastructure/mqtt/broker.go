package mqtt

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Broker setting limits. Port bounds are exclusive.
const (
	minPort = 80
	maxPort = 65535

	// MinKeepAlive and MaxKeepAlive bound the keepalive interval (seconds).
	MinKeepAlive = 1
	MaxKeepAlive = 2400

	// DefaultKeepAlive replaces an out-of-range keepalive.
	DefaultKeepAlive = 60
)

// BrokerConfig describes the broker endpoint and the session identity.
//
// A zero StatusTopic disables the liveness publisher and the last will.
type BrokerConfig struct {
	Host        string
	Port        int
	KeepAlive   int // seconds
	StatusTopic string
	ClientID    string
	Username    string
	Password    string
}

// Validate checks the fields a session cannot repair on its own.
// Keepalive is not checked here; Configure repairs it.
func (c BrokerConfig) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Host) == "" {
		errs = append(errs, "host is required")
	}
	if c.Port <= minPort || c.Port >= maxPort {
		errs = append(errs, fmt.Sprintf("port %d outside (%d, %d)", c.Port, minPort, maxPort))
	}
	if strings.ContainsAny(c.StatusTopic, "+#") {
		errs = append(errs, "status topic must not contain wildcards")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// Address returns host:port.
func (c BrokerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL returns the broker URL understood by the transport.
func (c BrokerConfig) URL() string {
	return "tcp://" + c.Address()
}

// KeepAliveInRange reports whether k is an acceptable keepalive.
func KeepAliveInRange(k int) bool {
	return k >= MinKeepAlive && k <= MaxKeepAlive
}

// repairKeepAlive returns cfg with an out-of-range keepalive replaced by
// DefaultKeepAlive, and whether a repair happened.
func repairKeepAlive(cfg BrokerConfig) (BrokerConfig, bool) {
	if KeepAliveInRange(cfg.KeepAlive) {
		return cfg, false
	}
	cfg.KeepAlive = DefaultKeepAlive
	return cfg, true
}

// connectionChanged reports whether moving from a to b needs a new transport session.
func connectionChanged(a, b BrokerConfig) bool {
	return a.Host != b.Host ||
		a.Port != b.Port ||
		a.KeepAlive != b.KeepAlive ||
		a.StatusTopic != b.StatusTopic ||
		a.ClientID != b.ClientID ||
		a.Username != b.Username ||
		a.Password != b.Password
}

// Package netcheck provides the connectivity signal read before every
// dispatch decision. There is no polling: each call re-checks.
package netcheck

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

// Checker reports whether the remote API is currently reachable.
type Checker interface {
	Online() bool
}

// Func adapts a function to a Checker.
type Func func() bool

// Online implements Checker.
func (f Func) Online() bool { return f() }

// Switch is a Checker whose state is set explicitly, e.g. by an --offline
// flag or a test.
type Switch struct {
	online atomic.Bool
}

// NewSwitch returns a Switch in the given state.
func NewSwitch(online bool) *Switch {
	s := &Switch{}
	s.online.Store(online)
	return s
}

// Online implements Checker.
func (s *Switch) Online() bool { return s.online.Load() }

// Set changes the reported state.
func (s *Switch) Set(online bool) { s.online.Store(online) }

// DefaultProbeTimeout bounds a probe when no timeout is configured.
const DefaultProbeTimeout = 2 * time.Second

// Probe reports online when a TCP connection to the endpoint's host can be
// opened within Timeout.
type Probe struct {
	Addr    string
	Timeout time.Duration

	dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// NewProbe builds a Probe for the host of endpoint. The port defaults to the
// scheme's well-known port.
func NewProbe(endpoint string, timeout time.Duration) (*Probe, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("endpoint %q has no host", endpoint)
	}

	port := u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "http":
			port = "80"
		case "https", "":
			port = "443"
		default:
			return nil, fmt.Errorf("endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
		}
	}

	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	return &Probe{
		Addr:    net.JoinHostPort(u.Hostname(), port),
		Timeout: timeout,
		dial:    net.DialTimeout,
	}, nil
}

// Online implements Checker.
func (p *Probe) Online() bool {
	dial := p.dial
	if dial == nil {
		dial = net.DialTimeout
	}

	conn, err := dial("tcp", p.Addr, p.Timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Mode selects a Checker from configuration.
type Mode string

const (
	ModeProbe   Mode = "probe"
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// FromMode builds the Checker for a configured mode.
func FromMode(mode Mode, endpoint string, probeTimeout time.Duration) (Checker, error) {
	switch Mode(strings.ToLower(string(mode))) {
	case ModeProbe, "":
		return NewProbe(endpoint, probeTimeout)
	case ModeOnline:
		return NewSwitch(true), nil
	case ModeOffline:
		return NewSwitch(false), nil
	default:
		return nil, fmt.Errorf("unknown connectivity mode %q", mode)
	}
}

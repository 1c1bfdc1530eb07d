// Package sharing issues share links for store paths and serves publicly
// shared files to anonymous clients.
package sharing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrShareNotFound is returned when a share id resolves to no path.
	ErrShareNotFound = errors.New("file not found or not shared")
	// ErrAccessDenied is returned when a private share is requested.
	ErrAccessDenied = errors.New("access denied: private file")
	// ErrMalformedRequest is returned for request paths that are not
	// /shared/<id>.
	ErrMalformedRequest = errors.New("invalid shared file path")
)

// Policy controls anonymous access to a shared path.
type Policy int

const (
	// Public shares are served to anyone holding the link.
	Public Policy = iota
	// Private shares are registered but never served.
	Private
)

func (p Policy) String() string {
	switch p {
	case Public:
		return "public"
	case Private:
		return "private"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy accepts "public" or "private" in any case.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return Public, nil
	case "private":
		return Private, nil
	default:
		return 0, fmt.Errorf("%w: unknown policy %q", ErrMalformedRequest, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	if p != Public && p != Private {
		return nil, fmt.Errorf("invalid policy %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	v, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

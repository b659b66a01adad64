//go:build !linux

package media

import "fmt"

// NewSession returns an error on platforms without a media session backend;
// callers fall back to NoOpSession.
func NewSession() (Session, error) {
	return nil, fmt.Errorf("media session not supported on this platform")
}

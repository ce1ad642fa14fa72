package subscription

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrInvalid is returned for a malformed push subscription.
var ErrInvalid = errors.New("invalid subscription")

// Keys are the client credentials used to encrypt a push payload.
type Keys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Subscription is a push endpoint registered by one client installation.
type Subscription struct {
	ID        string    `json:"id"`
	Endpoint  string    `json:"endpoint"`
	Keys      Keys      `json:"keys"`
	CreatedAt time.Time `json:"created_at"`
}

// IDFor derives the subscription identity from its endpoint, so the same
// installation always maps to the same record.
func IDFor(endpoint string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(endpoint)))
	return hex.EncodeToString(sum[:16])
}

// New validates the endpoint and keys and returns a Subscription with its
// derived id.
func New(endpoint string, keys Keys) (Subscription, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Subscription{}, fmt.Errorf("%w: endpoint is required", ErrInvalid)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return Subscription{}, fmt.Errorf("%w: endpoint: %v", ErrInvalid, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return Subscription{}, fmt.Errorf("%w: endpoint must be an absolute http(s) URL", ErrInvalid)
	}
	if strings.TrimSpace(keys.P256dh) == "" || strings.TrimSpace(keys.Auth) == "" {
		return Subscription{}, fmt.Errorf("%w: keys.p256dh and keys.auth are required", ErrInvalid)
	}

	return Subscription{
		ID:        IDFor(endpoint),
		Endpoint:  endpoint,
		Keys:      keys,
		CreatedAt: time.Now().UTC(),
	}, nil
}

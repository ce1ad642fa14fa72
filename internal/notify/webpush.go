package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/btouchard/choreboard/internal/subscription"
)

// VAPID identifies this server to push services.
type VAPID struct {
	PublicKey  string
	PrivateKey string
	// Subject is a mailto: or https: contact for the push service operator.
	Subject string
}

// WebPush delivers payloads through the Web Push protocol.
type WebPush struct {
	vapid  VAPID
	ttl    int
	client *http.Client
}

// NewWebPush creates a WebPush pusher. client may be nil.
func NewWebPush(vapid VAPID, ttlSeconds int, client *http.Client) *WebPush {
	if client == nil {
		client = http.DefaultClient
	}
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}
	return &WebPush{vapid: vapid, ttl: ttlSeconds, client: client}
}

// Push implements Pusher. Any non-2xx answer from the push service is a
// delivery failure.
func (w *WebPush) Push(ctx context.Context, sub subscription.Subscription, body []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Keys.Auth,
			P256dh: sub.Keys.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      w.client,
		Subscriber:      w.vapid.Subject,
		VAPIDPublicKey:  w.vapid.PublicKey,
		VAPIDPrivateKey: w.vapid.PrivateKey,
		TTL:             w.ttl,
	})
	if err != nil {
		return fmt.Errorf("sending push: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}

// GenerateVAPIDKeys returns a fresh base64url-encoded VAPID key pair.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generating vapid keys: %w", err)
	}
	return publicKey, privateKey, nil
}

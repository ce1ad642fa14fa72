package notify

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/choreboard/internal/subscription"
)

func clientKeys(t *testing.T) subscription.Keys {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return subscription.Keys{
		P256dh: base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
		Auth:   base64.RawURLEncoding.EncodeToString(auth),
	}
}

func testVAPID(t *testing.T) VAPID {
	t.Helper()
	pub, priv, err := GenerateVAPIDKeys()
	require.NoError(t, err)
	return VAPID{PublicKey: pub, PrivateKey: priv, Subject: "mailto:ops@example.com"}
}

func pushServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestWebPush_Push_Success(t *testing.T) {
	t.Parallel()

	srv, hits := pushServer(t, http.StatusCreated)
	sub, err := subscription.New(srv.URL+"/push/abc", clientKeys(t))
	require.NoError(t, err)

	w := NewWebPush(testVAPID(t), 60, srv.Client())
	require.NoError(t, w.Push(context.Background(), sub, []byte(`{"type":"reset"}`)))
	assert.Equal(t, int32(1), hits.Load())
}

func TestWebPush_Push_GoneIsFailure(t *testing.T) {
	t.Parallel()

	srv, _ := pushServer(t, http.StatusGone)
	sub, err := subscription.New(srv.URL+"/push/abc", clientKeys(t))
	require.NoError(t, err)

	w := NewWebPush(testVAPID(t), 60, srv.Client())
	err = w.Push(context.Background(), sub, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "410")
}

func TestWebPush_Push_UnreachableIsFailure(t *testing.T) {
	t.Parallel()

	srv, _ := pushServer(t, http.StatusCreated)
	sub, err := subscription.New(srv.URL+"/push/abc", clientKeys(t))
	require.NoError(t, err)
	srv.Close()

	w := NewWebPush(testVAPID(t), 60, nil)
	assert.Error(t, w.Push(context.Background(), sub, []byte(`{}`)))
}

func TestDispatcher_WithWebPush_PrunesGoneEndpoint(t *testing.T) {
	t.Parallel()

	alive, _ := pushServer(t, http.StatusCreated)
	gone, _ := pushServer(t, http.StatusGone)

	r := subscription.NewRegistry(nil)
	for _, endpoint := range []string{alive.URL + "/a", gone.URL + "/b"} {
		s, err := subscription.New(endpoint, clientKeys(t))
		require.NoError(t, err)
		require.NoError(t, r.Upsert(context.Background(), s))
	}

	d := NewDispatcher(r, NewWebPush(testVAPID(t), 60, nil), DispatcherOptions{})
	report := d.Dispatch(context.Background(), Reset())

	assert.Equal(t, 1, report.Pruned)
	require.Equal(t, 1, r.Len())
	assert.Equal(t, alive.URL+"/a", r.List()[0].Endpoint)
}

package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clovagate/internal/domain"
)

func hmacBase64(key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newTestClova(t *testing.T, endpoint string) *Clova {
	t.Helper()
	c, err := NewClova(ClovaConfig{
		Endpoint:  endpoint,
		SecretKey: "test-secret",
	})
	require.NoError(t, err)
	return c
}

func TestNewClova_MissingCredentials(t *testing.T) {
	_, err := NewClova(ClovaConfig{SecretKey: "s"})
	assert.ErrorIs(t, err, domain.ErrMissingEndpoint)

	_, err = NewClova(ClovaConfig{Endpoint: "https://chatbot.example"})
	assert.ErrorIs(t, err, domain.ErrMissingSecret)
}

func TestSend_SignsExactTransmittedBody(t *testing.T) {
	var gotBody []byte
	var gotSig, gotContentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		gotBody, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		gotSig = r.Header.Get("X-NCP-CHATBOT_SIGNATURE")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"userId":"u1","bubbles":[{"type":"text","data":{"description":"hi"}}]}`))
	}))
	defer srv.Close()

	c := newTestClova(t, srv.URL)
	raw, err := c.Send(context.Background(), domain.NewOutgoing("u1", "hello", ""))
	require.NoError(t, err)

	// The digest must verify against the bytes that actually crossed the
	// wire: serialization happened once and was reused for signing.
	assert.Equal(t, hmacBase64("test-secret", gotBody), gotSig)
	assert.Equal(t, "application/json; charset=UTF-8", gotContentType)

	assert.Contains(t, string(gotBody), `"version":"v2"`)
	assert.Contains(t, string(gotBody), `"event":"send"`)
	assert.Contains(t, string(gotBody), `"description":"hello"`)

	reply, err := domain.ParseReply(raw, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "hi", reply.ReplyText)
}

func TestSend_CustomSignatureHeader(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Custom-Signature")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := NewClova(ClovaConfig{
		Endpoint:        srv.URL,
		SecretKey:       "test-secret",
		SignatureHeader: "X-Custom-Signature",
	})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), domain.NewOutgoing("u1", "hi", ""))
	require.NoError(t, err)
	assert.NotEmpty(t, gotSig)
}

func TestSend_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("backend blew up"))
	}))
	defer srv.Close()

	c := newTestClova(t, srv.URL)
	_, err := c.Send(context.Background(), domain.NewOutgoing("u1", "hi", ""))
	require.Error(t, err)

	var gw *domain.GatewayError
	require.True(t, errors.As(err, &gw))
	assert.Equal(t, http.StatusInternalServerError, gw.Status)
	assert.Equal(t, "backend blew up", gw.Body)
}

func TestSend_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := newTestClova(t, srv.URL)
	_, err := c.Send(context.Background(), domain.NewOutgoing("u1", "hi", ""))
	require.Error(t, err)

	var tr *domain.TransportError
	assert.True(t, errors.As(err, &tr))
}

func TestHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Unsigned probes get rejected, but the endpoint is reachable.
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClova(t, srv.URL)
	assert.NoError(t, c.Healthy(context.Background()))

	srv.Close()
	assert.Error(t, c.Healthy(context.Background()))
}

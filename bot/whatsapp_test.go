package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-whatsapp/conversation"
)

type chanHandler chan conversation.Inbound

func (c chanHandler) Handle(ctx context.Context, in conversation.Inbound) { c <- in }

const webhookBody = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550001111", "phone_number_id": "PNID"},
        "messages": [
          {"from": "919800000001", "id": "a", "type": "text", "text": {"body": "Burger x2"}},
          {"from": "919800000001", "id": "b", "type": "location", "location": {"latitude": 12.97, "longitude": 77.59}},
          {"from": "919800000001", "id": "c", "type": "image", "image": {"id": "MEDIA1", "mime_type": "image/jpeg", "caption": "paid"}},
          {"from": "919800000001", "id": "d", "type": "sticker"}
        ]
      }
    }]
  }]
}`

func TestWhatsAppVerify(t *testing.T) {
	w := NewWhatsApp(WhatsAppConfig{VerifyToken: "secret"}, nil, nil)

	rec := httptest.NewRecorder()
	w.Verify(rec, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=42", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())

	rec = httptest.NewRecorder()
	w.Verify(rec, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=42", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// runWhatsApp starts w and waits until it accepts webhooks; the returned func stops it.
func runWhatsApp(t *testing.T, w *WhatsApp) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		w.mu.RLock()
		defer w.mu.RUnlock()
		return w.running
	}, time.Second, 10*time.Millisecond)
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
	}
}

func TestWhatsAppReceive(t *testing.T) {
	got := make(chanHandler, 8)
	w := NewWhatsApp(WhatsAppConfig{}, got, nil)
	stop := runWhatsApp(t, w)
	defer stop()

	rec := httptest.NewRecorder()
	w.Receive(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(webhookBody)))
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []conversation.Inbound
	for i := 0; i < 3; i++ {
		select {
		case in := <-got:
			msgs = append(msgs, in)
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d messages handled", len(msgs))
		}
	}
	assert.Equal(t, "Burger x2", msgs[0].Text)
	require.NotNil(t, msgs[1].Location)
	assert.Equal(t, 77.59, msgs[1].Location.Lon)
	assert.True(t, msgs[2].HasMedia)
	assert.Equal(t, "MEDIA1", msgs[2].MediaID)
	assert.Equal(t, "919800000001", msgs[2].From)

	rec = httptest.NewRecorder()
	w.Receive(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWhatsAppReceiveWhenStopped(t *testing.T) {
	got := make(chanHandler, 8)
	w := NewWhatsApp(WhatsAppConfig{}, got, nil)

	rec := httptest.NewRecorder()
	w.Receive(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(webhookBody)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "before Run")

	stop := runWhatsApp(t, w)
	stop()

	rec = httptest.NewRecorder()
	w.Receive(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(webhookBody)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "after shutdown")

	select {
	case in := <-got:
		t.Fatalf("stopped transport handled %q", in.Text)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWhatsAppSendText(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v20.0/PNID/messages", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(rw, `{"messages":[{"id":"wamid.1"}]}`)
	}))
	defer srv.Close()

	w := NewWhatsApp(WhatsAppConfig{Token: "tok", PhoneNumberID: "PNID", APIVersion: "v20.0", BaseURL: srv.URL + "/"}, nil, nil)
	require.NoError(t, w.SendText(context.Background(), "919800000001", "hello"))
	assert.Equal(t, "919800000001", got.To)
	assert.Equal(t, "hello", got.Text.Body)
	assert.Equal(t, "whatsapp", got.MessagingProduct)
}

func TestWhatsAppSendTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(rw, `{"error":{"message":"Invalid parameter","code":100}}`)
	}))
	defer srv.Close()

	w := NewWhatsApp(WhatsAppConfig{Token: "tok", PhoneNumberID: "PNID", APIVersion: "v20.0", BaseURL: srv.URL}, nil, nil)
	err := w.SendText(context.Background(), "1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid parameter")
}

func TestWhatsAppFetchMedia(t *testing.T) {
	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("/v20.0/MEDIA1", func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(rw, `{"url":"%s/blob","mime_type":"image/png"}`, base)
	})
	mux.HandleFunc("/blob", func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(rw, "PNGDATA")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	base = srv.URL

	w := NewWhatsApp(WhatsAppConfig{Token: "tok", APIVersion: "v20.0", BaseURL: srv.URL}, nil, nil)
	data, ct, err := w.FetchMedia(context.Background(), "MEDIA1")
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))
	assert.Equal(t, "image/png", ct)
}

func TestWhatsAppRunWaitsAndReportsStatus(t *testing.T) {
	w := NewWhatsApp(WhatsAppConfig{Token: "tok", PhoneNumberID: "PNID"}, nil, nil)
	assert.False(t, w.Status().Ready)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return w.Status().Ready }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, w.Status().Ready)
}

func TestCommandText(t *testing.T) {
	assert.Equal(t, "start", commandText("/start"))
	assert.Equal(t, "menu", commandText("/menu@spice_bot"))
	assert.Equal(t, "my orders", commandText("/my_orders"))
	assert.Equal(t, "Burger x2", commandText(" Burger x2 "))
}

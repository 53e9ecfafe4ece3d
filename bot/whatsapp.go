package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"food-whatsapp/conversation"
	"food-whatsapp/models"
)

const maxWebhookBytes = 1 << 20

type WhatsAppConfig struct {
	Token         string
	PhoneNumberID string
	VerifyToken   string
	APIVersion    string
	BaseURL       string
}

// WhatsApp talks to the WhatsApp Cloud API. Inbound messages arrive on the webhook handlers;
// the customer address is the sender's phone number (wa_id).
type WhatsApp struct {
	cfg     WhatsAppConfig
	handler Handler
	http    *retryablehttp.Client
	log     *zap.Logger

	mu      sync.RWMutex
	baseCtx context.Context
	running bool
	wg      sync.WaitGroup
}

func NewWhatsApp(cfg WhatsAppConfig, handler Handler, log *zap.Logger) *WhatsApp {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = leveledLogger{log.Sugar()}
	return &WhatsApp{
		cfg:     cfg,
		handler: handler,
		http:    client,
		log:     log.With(zap.String("transport", "whatsapp")),
		baseCtx: context.Background(),
	}
}

// Run marks the transport ready and blocks until ctx is done, then waits for in-flight
// webhook deliveries.
func (w *WhatsApp) Run(ctx context.Context) error {
	w.mu.Lock()
	w.baseCtx = ctx
	w.running = true
	w.mu.Unlock()
	w.log.Info("webhook transport ready", zap.String("phone_number_id", w.cfg.PhoneNumberID))

	<-ctx.Done()

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	w.wg.Wait()
	return nil
}

// Verify answers the webhook subscription handshake.
func (w *WhatsApp) Verify(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != w.cfg.VerifyToken || w.cfg.VerifyToken == "" {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	rw.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(rw, q.Get("hub.challenge"))
}

// Receive acknowledges a webhook delivery at once and handles its messages in order. Deliveries
// arriving while the transport is not running get 503 so the Cloud API retries them.
func (w *WhatsApp) Receive(rw http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBytes)).Decode(&payload); err != nil {
		http.Error(rw, "invalid payload", http.StatusBadRequest)
		return
	}
	// Run holds mu while it flips running off, so no Add can follow its Wait.
	w.mu.RLock()
	if !w.running || w.baseCtx.Err() != nil {
		w.mu.RUnlock()
		http.Error(rw, "transport not running", http.StatusServiceUnavailable)
		return
	}
	ctx := w.baseCtx
	w.wg.Add(1)
	w.mu.RUnlock()

	rw.WriteHeader(http.StatusOK)

	inbound := parseWebhook(payload)
	if len(inbound) == 0 {
		w.wg.Done()
		return
	}
	go func() {
		defer w.wg.Done()
		for _, in := range inbound {
			w.handler.Handle(ctx, in)
		}
	}()
}

func parseWebhook(p webhookPayload) []conversation.Inbound {
	var out []conversation.Inbound
	for _, e := range p.Entry {
		for _, ch := range e.Changes {
			if ch.Field != "" && ch.Field != "messages" {
				continue
			}
			for _, m := range ch.Value.Messages {
				if in, ok := messageToInbound(m); ok {
					out = append(out, in)
				}
			}
		}
	}
	return out
}

func messageToInbound(m waMessage) (conversation.Inbound, bool) {
	in := conversation.Inbound{From: m.From}
	switch m.Type {
	case "text":
		if m.Text == nil {
			return in, false
		}
		in.Text = m.Text.Body
	case "image":
		if m.Image == nil {
			return in, false
		}
		in.HasMedia = true
		in.MediaID = m.Image.ID
		in.MediaType = m.Image.MimeType
		in.Text = m.Image.Caption
	case "document":
		if m.Document == nil {
			return in, false
		}
		in.HasMedia = true
		in.MediaID = m.Document.ID
		in.MediaType = m.Document.MimeType
		in.Text = m.Document.Caption
	case "location":
		if m.Location == nil {
			return in, false
		}
		in.Location = &models.GeoPoint{Lat: m.Location.Latitude, Lon: m.Location.Longitude}
	case "button":
		if m.Button == nil {
			return in, false
		}
		in.Text = m.Button.Text
	case "interactive":
		if m.Interactive == nil || m.Interactive.ButtonReply == nil {
			return in, false
		}
		in.Text = m.Interactive.ButtonReply.Title
	default:
		return in, false
	}
	return in, in.From != ""
}

func (w *WhatsApp) graphURL(path string) string {
	return fmt.Sprintf("%s/%s/%s", w.cfg.BaseURL, w.cfg.APIVersion, strings.TrimLeft(path, "/"))
}

func (w *WhatsApp) SendText(ctx context.Context, to, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             waText{Body: text},
	})
	if err != nil {
		return err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, w.graphURL(w.cfg.PhoneNumberID+"/messages"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+w.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return graphFailure(resp)
	}
	return nil
}

// FetchMedia resolves a media id to its temporary URL and downloads it.
func (w *WhatsApp) FetchMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, w.graphURL(mediaID), nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+w.cfg.Token)
	resp, err := w.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("media lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", graphFailure(resp)
	}
	var info mediaInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, "", fmt.Errorf("decode media info: %w", err)
	}
	data, ct, err := download(ctx, w.http, info.URL, w.cfg.Token)
	if err != nil {
		return nil, "", err
	}
	if info.MimeType != "" {
		ct = info.MimeType
	}
	return data, ct, nil
}

func (w *WhatsApp) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Status{Transport: "whatsapp", Ready: w.running && w.cfg.Token != "", Account: w.cfg.PhoneNumberID}
}

func graphFailure(resp *http.Response) error {
	var ge graphError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &ge) == nil && ge.Error.Message != "" {
		return fmt.Errorf("graph api: status %d: %s (code %d)", resp.StatusCode, ge.Error.Message, ge.Error.Code)
	}
	return fmt.Errorf("graph api: status %d", resp.StatusCode)
}

package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"food-whatsapp/conversation"
	"food-whatsapp/models"
)

const maxMediaBytes = 10 << 20

// Telegram long-polls the Bot API. The customer address is the chat id.
type Telegram struct {
	api     *tgbotapi.BotAPI
	handler Handler
	http    *retryablehttp.Client
	log     *zap.Logger

	mu    sync.RWMutex
	ready bool
}

func NewTelegram(token string, handler Handler, log *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot api: %w", err)
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = leveledLogger{log.Sugar()}
	return &Telegram{api: api, handler: handler, http: client, log: log.With(zap.String("transport", "telegram"))}, nil
}

func (t *Telegram) setBotCommands() error {
	cfg := tgbotapi.SetMyCommandsConfig{
		Commands: []tgbotapi.BotCommand{
			{Command: "start", Description: "Welcome"},
			{Command: "menu", Description: "Show the menu"},
			{Command: "orders", Description: "My orders"},
			{Command: "cart", Description: "My cart"},
			{Command: "profile", Description: "My profile"},
			{Command: "help", Description: "Help"},
		},
	}
	_, err := t.api.Request(cfg)
	return err
}

// Run processes updates in arrival order until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context) error {
	if err := t.setBotCommands(); err != nil {
		t.log.Warn("set bot commands", zap.Error(err))
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.api.GetUpdatesChan(u)

	t.setReady(true)
	defer t.setReady(false)
	t.log.Info("polling updates", zap.String("account", t.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			t.handler.Handle(ctx, toInbound(update.Message))
		}
	}
}

func toInbound(msg *tgbotapi.Message) conversation.Inbound {
	in := conversation.Inbound{
		From: strconv.FormatInt(msg.Chat.ID, 10),
		Text: commandText(msg.Text),
	}
	if msg.Location != nil {
		in.Location = &models.GeoPoint{Lat: msg.Location.Latitude, Lon: msg.Location.Longitude}
	}
	if len(msg.Photo) > 0 {
		largest := msg.Photo[len(msg.Photo)-1]
		in.HasMedia = true
		in.MediaType = "image/jpeg"
		in.MediaID = largest.FileID
		if in.Text == "" {
			in.Text = msg.Caption
		}
	} else if msg.Document != nil {
		in.HasMedia = true
		in.MediaType = msg.Document.MimeType
		in.MediaID = msg.Document.FileID
	}
	return in
}

func (t *Telegram) SendText(ctx context.Context, to, text string) error {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat id %q: %w", to, err)
	}
	_, err = t.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (t *Telegram) FetchMedia(ctx context.Context, fileID string) ([]byte, string, error) {
	url, err := t.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, "", fmt.Errorf("resolve file: %w", err)
	}
	return download(ctx, t.http, url, "")
}

func (t *Telegram) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Status{Transport: "telegram", Ready: t.ready, Account: t.api.Self.UserName}
}

func (t *Telegram) setReady(v bool) {
	t.mu.Lock()
	t.ready = v
	t.mu.Unlock()
}

// download GETs url, optionally with a bearer token, capped at maxMediaBytes.
func download(ctx context.Context, client *retryablehttp.Client, url, token string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download media: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

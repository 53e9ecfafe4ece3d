// Package bot connects the conversation engine to messaging networks.
package bot

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"food-whatsapp/conversation"
)

// Handler consumes normalized inbound messages.
type Handler interface {
	Handle(ctx context.Context, in conversation.Inbound)
}

// Status is reported on the admin dashboard.
type Status struct {
	Transport string `json:"transport"`
	Ready     bool   `json:"ready"`
	Account   string `json:"account,omitempty"`
}

// Transport is a running messaging channel.
type Transport interface {
	Run(ctx context.Context) error
	SendText(ctx context.Context, to, text string) error
	FetchMedia(ctx context.Context, mediaID string) ([]byte, string, error)
	Status() Status
}

// commandText maps slash commands ("/start", "/menu@shop_bot") to the bare words the
// conversation understands.
func commandText(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return text
	}
	text = strings.TrimPrefix(text, "/")
	if i := strings.IndexByte(text, '@'); i >= 0 {
		text = text[:i]
	}
	return strings.ReplaceAll(text, "_", " ")
}

// leveledLogger lets retryablehttp log through zap.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }

package bot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramToInbound(t *testing.T) {
	in := toInbound(&tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 4242}, Text: "/orders"})
	assert.Equal(t, "4242", in.From)
	assert.Equal(t, "orders", in.Text)

	in = toInbound(&tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 1},
		Location: &tgbotapi.Location{Latitude: 12.5, Longitude: 77.5},
	})
	require.NotNil(t, in.Location)
	assert.Equal(t, 12.5, in.Location.Lat)

	in = toInbound(&tgbotapi.Message{
		Chat:    &tgbotapi.Chat{ID: 1},
		Caption: "paid",
		Photo:   []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
	})
	assert.True(t, in.HasMedia)
	assert.Equal(t, "large", in.MediaID)
	assert.Equal(t, "paid", in.Text)
}

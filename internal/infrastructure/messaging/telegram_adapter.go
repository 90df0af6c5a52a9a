package messaging

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/messaging"
)

// TelegramAdapter sends a short HTML message to one chat. The adapter's
// Secret is the bot token; Options["chat_id"] selects the chat.
type TelegramAdapter struct {
	config   messaging.AdapterConfig
	chatID   int64
	endpoint string
	client   *http.Client

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

func NewTelegramAdapter(config messaging.AdapterConfig) (*TelegramAdapter, error) {
	if config.Secret == "" {
		return nil, fmt.Errorf("telegram adapter %q needs a bot token", config.Name)
	}
	chatID, err := strconv.ParseInt(config.Option("chat_id", ""), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("telegram adapter %q: invalid chat_id: %w", config.Name, err)
	}
	return &TelegramAdapter{
		config:   config,
		chatID:   chatID,
		endpoint: config.Option("api_endpoint", tgbotapi.APIEndpoint),
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (a *TelegramAdapter) Name() string { return a.config.Name }
func (a *TelegramAdapter) Type() string { return messaging.TypeTelegram }

func (a *TelegramAdapter) Send(ctx context.Context, event *events.BaseEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bot, err := a.api()
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(a.chatID, formatTelegramMessage(event))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("send to telegram: %w", err)
	}
	return nil
}

func (a *TelegramAdapter) api() (*tgbotapi.BotAPI, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.bot != nil {
		return a.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(a.config.Secret, a.endpoint, a.client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	a.bot = bot
	return bot, nil
}

func formatTelegramMessage(event *events.BaseEvent) string {
	return fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(event.Type), html.EscapeString(event.String()))
}

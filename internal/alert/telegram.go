package alert

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"triage/internal/config"
)

// TelegramSender is the part of *tgbotapi.BotAPI used for delivery.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	sender TelegramSender
	chatID int64
}

func NewTelegramNotifier(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return NewTelegramNotifierWithSender(bot, cfg.ChatID), nil
}

func NewTelegramNotifierWithSender(sender TelegramSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID}
}

func (n *TelegramNotifier) Name() string {
	return "telegram"
}

func (n *TelegramNotifier) Notify(ctx context.Context, a Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatTelegram(a))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// FormatTelegram renders an alert as Telegram HTML.
func FormatTelegram(a Alert) string {
	var b strings.Builder
	b.WriteString("<b>High priority message</b>\n")
	fmt.Fprintf(&b, "<b>From:</b> %s\n", html.EscapeString(a.Sender))
	fmt.Fprintf(&b, "<b>Subject:</b> %s\n", html.EscapeString(a.Subject))
	if a.Summary != "" {
		fmt.Fprintf(&b, "<b>Summary:</b> %s\n", html.EscapeString(a.Summary))
	}
	if a.ActionRequired != nil {
		fmt.Fprintf(&b, "<b>Action:</b> %s\n", html.EscapeString(*a.ActionRequired))
	}
	for _, k := range a.Details.Keys() {
		v, _ := a.Details.Get(k)
		fmt.Fprintf(&b, "%s: %s\n", html.EscapeString(k), html.EscapeString(v))
	}
	return strings.TrimRight(b.String(), "\n")
}

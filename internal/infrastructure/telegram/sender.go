package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hotbags/backend/internal/domain"
)

const maxTelegramMessage = 4096

// Sender delivers CHECK messages to operators over a Telegram bot.
type Sender struct {
	bot *tgbotapi.BotAPI
}

// NewSender authenticates the bot token against the Bot API.
func NewSender(token string) (*Sender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Sender{bot: bot}, nil
}

// NewSenderWithEndpoint points the bot at a custom Bot API endpoint,
// formatted like tgbotapi.APIEndpoint.
func NewSenderWithEndpoint(token, endpoint string) (*Sender, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Sender{bot: bot}, nil
}

// SendText sends body to the numeric chat id in recipient, split into
// Telegram-sized parts. Markdown is tried first and plain text on rejection.
func (s *Sender) SendText(ctx context.Context, recipient, body string) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(recipient), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid telegram chat id %q", domain.ErrMessagingFailure, recipient)
	}

	for _, part := range splitMessage(body) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := s.bot.Send(msg); err != nil {
			log.Printf("[TELEGRAM] Markdown send failed for chat %d, retrying as plain text: %v", chatID, err)
			msg.ParseMode = ""
			if _, err := s.bot.Send(msg); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrMessagingFailure, err)
			}
		}
	}
	return nil
}

// splitMessage cuts text into parts of at most maxTelegramMessage runes,
// preferring to break after a newline.
func splitMessage(text string) []string {
	runes := []rune(text)
	if len(runes) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(runes) > 0 {
		end := maxTelegramMessage
		if end >= len(runes) {
			parts = append(parts, string(runes))
			break
		}
		for i := end - 1; i > 0; i-- {
			if runes[i] == '\n' {
				end = i + 1
				break
			}
		}
		parts = append(parts, string(runes[:end]))
		runes = runes[end:]
	}
	return parts
}

// Package telegram runs the Telegram front-end of the admissions assistant.
// The bot long-polls for updates and answers plain-text questions through the
// chat service; every message is treated as a standalone question, there is
// no per-chat dialogue history.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/iowathe3rd/admissions-agent/internal/chat"
)

// answerTimeout bounds a single question round trip (embedding, search,
// generation) so one stuck request cannot block the bot worker forever.
const answerTimeout = 2 * time.Minute

// typingInterval is how often the "typing" chat action is re-sent while an
// answer is being generated. Telegram expires the indicator after ~5 seconds.
const typingInterval = 4 * time.Second

// greeting is sent in response to /start.
const greeting = "Здравствуйте! Я ассистент приёмной комиссии ALT University.\n" +
	"Задайте вопрос о поступлении, программах, сроках или документах, и я отвечу на основе базы знаний университета.\n\n" +
	"Команды:\n" +
	"/start — это сообщение\n" +
	"/help — список команд"

// helpText is sent in response to /help and unknown commands.
const helpText = "Просто напишите свой вопрос обычным сообщением.\n\n" +
	"Команды:\n" +
	"/start — приветствие\n" +
	"/help — это сообщение"

// asker answers a single question. *chat.Service satisfies it.
type asker interface {
	Ask(ctx context.Context, userID, question string) chat.Answer
}

// Bot is the Telegram front-end. It owns the long-polling loop and forwards
// each text message to the chat service.
type Bot struct {
	// api is the underlying Telegram client.
	api *bot.Bot

	// chat answers questions.
	chat asker

	// log is the structured logger for this bot instance.
	log *slog.Logger
}

// New constructs a Bot with the given token and chat service. The token is
// validated against the Telegram API lazily, on Start.
func New(token string, svc asker, log *slog.Logger) (*Bot, error) {
	if token == "" {
		return nil, errors.New("telegram: bot token is required (set TELEGRAM_BOT_TOKEN)")
	}
	if svc == nil {
		return nil, errors.New("telegram: chat service is required")
	}
	if log == nil {
		log = slog.Default()
	}

	b := &Bot{chat: svc, log: log.With(slog.String("component", "telegram"))}

	api, err := bot.New(token,
		bot.WithDefaultHandler(b.handleUpdate),
		bot.WithSkipGetMe(),
	)
	if err != nil {
		return nil, fmt.Errorf("telegram: failed to initialise bot: %w", err)
	}
	b.api = api

	return b, nil
}

// Start runs the long-polling loop until ctx is canceled.
func (b *Bot) Start(ctx context.Context) {
	b.log.Info("telegram bot started")
	b.api.Start(ctx)
	b.log.Info("telegram bot stopped")
}

// handleUpdate dispatches one Telegram update. Only text messages are
// handled; everything else (photos, stickers, voice) is answered with the
// help text.
func (b *Bot) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Chat.ID == 0 {
		return
	}
	msg := update.Message
	chatID := msg.Chat.ID

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		b.send(ctx, chatID, helpText)
		return
	}

	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, chatID, text)
		return
	}

	b.handleQuestion(ctx, chatID, text)
}

// handleCommand processes /start and /help. Unknown commands get the help
// text rather than an error so typos are not a dead end.
func (b *Bot) handleCommand(ctx context.Context, chatID int64, text string) {
	command := strings.TrimPrefix(strings.Fields(text)[0], "/")
	// Commands in groups arrive as /cmd@botname.
	if i := strings.IndexByte(command, '@'); i >= 0 {
		command = command[:i]
	}

	b.log.Info("command received",
		slog.Int64("chat_id", chatID),
		slog.String("command", command),
	)

	switch command {
	case "start":
		b.send(ctx, chatID, greeting)
	default:
		b.send(ctx, chatID, helpText)
	}
}

// handleQuestion answers one plain-text question. The chat ID doubles as the
// user ID in the interaction log. The chat service never fails, so the user
// always receives some answer text.
func (b *Bot) handleQuestion(ctx context.Context, chatID int64, question string) {
	log := b.log.With(slog.Int64("chat_id", chatID))
	log.Info("question received", slog.Int("length", len(question)))

	askCtx, cancel := context.WithTimeout(ctx, answerTimeout)
	defer cancel()

	done := make(chan struct{})
	go b.keepTyping(askCtx, chatID, done)

	answer := b.chat.Ask(askCtx, strconv.FormatInt(chatID, 10), question)
	close(done)

	log.Info("question answered",
		slog.Int("contexts", len(answer.Contexts)),
		slog.Int("answer_length", len(answer.Text)),
	)

	b.send(ctx, chatID, answer.Text)
}

// keepTyping re-sends the "typing" chat action until done is closed or the
// context expires.
func (b *Bot) keepTyping(ctx context.Context, chatID int64, done <-chan struct{}) {
	send := func() {
		_, _ = b.api.SendChatAction(ctx, &bot.SendChatActionParams{
			ChatID: chatID,
			Action: models.ChatActionTyping,
		})
	}
	send()

	ticker := time.NewTicker(typingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			send()
		}
	}
}

// send delivers a plain-text message, logging delivery failures.
func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	_, err := b.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		b.log.Error("failed to send message",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"salesagent/pkg/api"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramConfig holds the bot credentials issued by @BotFather.
type TelegramConfig struct {
	Token string `json:"token"`
	// RunTimeoutSec bounds one question end to end. Default: 300.
	RunTimeoutSec int `json:"run_timeout_sec"`
}

// botAPI is the subset of *tgbotapi.BotAPI used by the channel.
type botAPI interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel answers Telegram text messages with a full agent run.
// Updates are long-polled; each question runs in its own goroutine.
type TelegramChannel struct {
	config       TelegramConfig
	bot          botAPI
	transport    *http.Transport
	messageLimit int
	stopCtx      context.Context
	stopCancel   context.CancelFunc
}

func NewTelegramChannel(cfg TelegramConfig, msgLimit int) (*TelegramChannel, error) {
	ctx, cancel := context.WithCancel(context.Background())

	// Dials are tied to stopCtx so Stop aborts an in-flight long poll,
	// otherwise a restarted bot gets 409 Conflict.
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext: func(dialCtx context.Context, network, addr string) (net.Conn, error) {
			mergedCtx, mergedCancel := context.WithCancel(dialCtx)
			go func() {
				select {
				case <-ctx.Done():
					mergedCancel()
				case <-mergedCtx.Done():
				}
			}()
			return dialer.DialContext(mergedCtx, network, addr)
		},
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, &http.Client{
		Timeout:   90 * time.Second,
		Transport: transport,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)

	return newChannel(ctx, cancel, cfg, bot, transport, msgLimit), nil
}

func newChannel(ctx context.Context, cancel context.CancelFunc, cfg TelegramConfig, bot botAPI, transport *http.Transport, msgLimit int) *TelegramChannel {
	if msgLimit <= 0 {
		msgLimit = 4000
	}
	if cfg.RunTimeoutSec <= 0 {
		cfg.RunTimeoutSec = 300
	}
	return &TelegramChannel{
		config:       cfg,
		bot:          bot,
		transport:    transport,
		messageLimit: msgLimit,
		stopCtx:      ctx,
		stopCancel:   cancel,
	}
}

// ID returns the platform identifier "telegram".
func (t *TelegramChannel) ID() string {
	return "telegram"
}

// Start launches the long-polling loop in the background.
func (t *TelegramChannel) Start(ctx api.ChannelContext) error {
	go t.poll(ctx)
	return nil
}

func (t *TelegramChannel) poll(ctx api.ChannelContext) {
	offset := 0
	for {
		select {
		case <-t.stopCtx.Done():
			return
		default:
		}

		reqConfig := tgbotapi.NewUpdate(offset)
		reqConfig.Timeout = 60

		updates, err := t.bot.GetUpdates(reqConfig)
		if err != nil {
			select {
			case <-t.stopCtx.Done():
				return
			default:
				slog.Debug("Failed to get telegram updates", "error", err)
				time.Sleep(3 * time.Second)
				continue
			}
		}

		for _, update := range updates {
			if update.UpdateID < offset {
				continue
			}
			offset = update.UpdateID + 1

			if update.Message == nil || update.Message.From == nil {
				continue
			}
			question := strings.TrimSpace(update.Message.Text)
			if question == "" {
				question = strings.TrimSpace(update.Message.Caption)
			}
			if question == "" {
				continue
			}

			session := api.SessionContext{
				ChannelID: t.ID(),
				UserID:    strconv.FormatInt(update.Message.From.ID, 10),
				ChatID:    strconv.FormatInt(update.Message.Chat.ID, 10),
				Username:  update.Message.From.UserName,
			}
			go t.answer(ctx, session, question)
		}
	}
}

// answer runs one question and replies with the final text.
func (t *TelegramChannel) answer(ctx api.ChannelContext, session api.SessionContext, question string) {
	if chatID, err := strconv.ParseInt(session.ChatID, 10, 64); err == nil {
		if _, err := t.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
			slog.Debug("Failed to send typing action", "error", err)
		}
	}

	runCtx, cancel := context.WithTimeout(t.stopCtx, time.Duration(t.config.RunTimeoutSec)*time.Second)
	defer cancel()

	reply := ""
	res, err := ctx.Ask(runCtx, session, question)
	if err != nil {
		reply = "⚠️ The assistant is unavailable right now, please try again later."
	} else {
		reply = res.FinalText
	}

	if err := t.Send(session, reply); err != nil {
		slog.Error("Failed to send telegram reply", "chat_id", session.ChatID, "error", err)
	}
}

func (t *TelegramChannel) Stop() error {
	t.stopCancel()
	if t.transport != nil {
		t.transport.CloseIdleConnections()
	}
	return nil
}

// Send delivers message, split into bubbles of at most messageLimit runes.
func (t *TelegramChannel) Send(session api.SessionContext, message string) error {
	chatID, err := strconv.ParseInt(session.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id for telegram: %s", session.ChatID)
	}

	for i, part := range splitMessage(message, t.messageLimit) {
		if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			return fmt.Errorf("telegram send chunk %d failed: %w", i, err)
		}
	}
	return nil
}

func splitMessage(message string, limit int) []string {
	runes := []rune(message)
	if len(runes) <= limit {
		return []string{message}
	}
	var parts []string
	for i := 0; i < len(runes); i += limit {
		end := min(i+limit, len(runes))
		parts = append(parts, string(runes[i:end]))
	}
	return parts
}

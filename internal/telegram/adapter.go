package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/freightbot/internal/gateway"
	"github.com/user/freightbot/internal/types"
)

const (
	maxTelegramMessage = 4096
	maxTelegramCaption = 1024
)

// botAPI is the subset of *tgbotapi.BotAPI used by the adapter.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Adapter bridges Telegram to the gateway. It decodes updates into
// inbound events, renders replies as reply keyboards, and delivers
// operator notifications.
type Adapter struct {
	bot     botAPI
	gateway *gateway.Gateway
	labels  types.Labels
}

// New creates a Telegram adapter.
func New(token string, gw *gateway.Gateway, labels types.Labels) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	slog.Info("telegram bot authorized", "username", bot.Self.UserName)
	return newAdapter(bot, gw, labels), nil
}

func newAdapter(bot botAPI, gw *gateway.Gateway, labels types.Labels) *Adapter {
	return &Adapter{bot: bot, gateway: gw, labels: labels}
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	if _, err := a.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		slog.Warn("delete webhook failed", "error", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			a.HandleUpdate(ctx, update)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

// SetWebhook registers url with Telegram so updates arrive over HTTP. A
// non-empty secret is appended as the "secret" query parameter.
func (a *Adapter) SetWebhook(webhookURL, secret string) error {
	if secret != "" {
		u, err := url.Parse(webhookURL)
		if err != nil {
			return fmt.Errorf("parse webhook url: %w", err)
		}
		q := u.Query()
		q.Set("secret", secret)
		u.RawQuery = q.Encode()
		webhookURL = u.String()
	}
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}
	if _, err := a.bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// HandleUpdate decodes one update and enqueues it on the gateway.
func (a *Adapter) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	event := Decode(a.labels, update.Message)
	if event == nil {
		return
	}

	err := a.gateway.HandleInbound(ctx, event, gateway.WithOnComplete(a.Send))
	if err != nil {
		slog.Error("handle inbound error", "user_id", string(event.UserID), "error", err)
		a.Send(&types.OutboundMessage{
			UserID: event.UserID,
			ChatID: event.ChatID,
			Text:   "Sorry, I encountered an error processing your message.",
		})
	}
}

// Decode converts a Telegram message into an inbound event. Button labels
// are decoded into commands here so the engine never compares strings.
func Decode(labels types.Labels, msg *tgbotapi.Message) *types.InboundEvent {
	if msg.From == nil || msg.Chat == nil {
		return nil
	}

	event := &types.InboundEvent{
		Source:      "telegram",
		UserID:      types.UserIDFromInt(msg.From.ID),
		ChatID:      msg.Chat.ID,
		Username:    msg.From.UserName,
		DisplayName: strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName),
		Kind:        types.EventText,
	}

	switch {
	case msg.Contact != nil:
		event.Kind = types.EventContact
		event.Phone = msg.Contact.PhoneNumber
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		event.Kind = types.EventPhoto
		event.Photo = &types.PhotoRef{
			FileID:   largest.FileID,
			UniqueID: largest.FileUniqueID,
			Size:     largest.FileSize,
		}
	case msg.IsCommand():
		event.Text = msg.Text
		if cmd := slashCommand(msg.Command()); cmd != types.CmdNone {
			event.Kind = types.EventCommand
			event.Command = cmd
		}
	default:
		event.Text = msg.Text
		event.Command = labels.Decode(msg.Text)
		if event.Command != types.CmdNone {
			event.Kind = types.EventCommand
		}
	}
	return event
}

func slashCommand(name string) types.Command {
	switch name {
	case "start":
		return types.CmdStart
	case "new":
		return types.CmdNewRequest
	case "cancel":
		return types.CmdCancel
	case "help":
		return types.CmdContactOperator
	case "admin":
		return types.CmdAdmin
	default:
		return types.CmdNone
	}
}

// Send renders an outbound message. The keyboard is attached to the last
// part when the text has to be split.
func (a *Adapter) Send(out *types.OutboundMessage) {
	parts := splitMessage(out.Text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(out.ChatID, part)
		if i == len(parts)-1 {
			if markup := keyboard(out); markup != nil {
				msg.ReplyMarkup = markup
			}
		}
		if _, err := a.bot.Send(msg); err != nil {
			slog.Error("send message error", "chat_id", out.ChatID, "error", err)
		}
	}
}

// keyboard lays replies out two per row, with the contact button alone
// on top.
func keyboard(out *types.OutboundMessage) any {
	if out.RemoveKeyboard {
		return tgbotapi.NewRemoveKeyboard(true)
	}
	if len(out.Replies) == 0 && out.RequestContact == "" {
		return nil
	}

	var rows [][]tgbotapi.KeyboardButton
	if out.RequestContact != "" {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact(out.RequestContact)))
	}
	for i := 0; i < len(out.Replies); i += 2 {
		row := []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(out.Replies[i])}
		if i+1 < len(out.Replies) {
			row = append(row, tgbotapi.NewKeyboardButton(out.Replies[i+1]))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

// FileURL resolves a file id to a download URL.
func (a *Adapter) FileURL(fileID string) (string, error) {
	return a.bot.GetFileDirectURL(fileID)
}

// Deliver sends an operator notification to the chat id in address. The
// photo is attached when available; otherwise only the text is sent.
func (a *Adapter) Deliver(ctx context.Context, address string, n *types.Notification) error {
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", address, err)
	}

	if file, ok := photoFile(n); ok {
		photo := tgbotapi.NewPhoto(chatID, file)
		if len([]rune(n.HTML)) <= maxTelegramCaption {
			photo.Caption = n.HTML
			photo.ParseMode = tgbotapi.ModeHTML
			return a.send(ctx, photo)
		}
		if err := a.send(ctx, photo); err != nil {
			return err
		}
	}

	for _, part := range splitMessage(n.HTML) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		if err := a.send(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func photoFile(n *types.Notification) (tgbotapi.RequestFileData, bool) {
	switch {
	case n.PhotoPath != "":
		return tgbotapi.FilePath(n.PhotoPath), true
	case strings.HasPrefix(n.PhotoRef, "http://") || strings.HasPrefix(n.PhotoRef, "https://"):
		return tgbotapi.FileURL(n.PhotoRef), true
	default:
		return nil, false
	}
}

// send runs a blocking Send but returns as soon as ctx is done.
func (a *Adapter) send(ctx context.Context, c tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := a.bot.Send(c)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// splitMessage cuts text into chunks of at most maxTelegramMessage runes,
// preferring to break at a newline. A cut never lands inside an HTML tag
// or entity.
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
		if nl := lastNewline(runes[:end]); nl > end/2 {
			end = nl + 1
		}
		end = markupSafeCut(runes, end)
		parts = append(parts, string(runes[:end]))
		runes = runes[end:]
	}
	return parts
}

// markupSafeCut moves end back so runes[:end] leaves no tag, entity or
// element open. An element longer than a whole chunk is cut anyway.
func markupSafeCut(runes []rune, end int) int {
scan:
	for i := end - 1; i > 0; i-- {
		switch runes[i] {
		case ';', '>':
			break scan
		case '&', '<':
			end = i
			break scan
		}
	}
	for i := end - 1; i > 0; i-- {
		if runes[i] == '<' {
			if runes[i+1] != '/' {
				return i
			}
			break
		}
	}
	return end
}

func lastNewline(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}

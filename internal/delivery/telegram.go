package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-purchase-backend/internal/domain"
	"github.com/tbourn/go-purchase-backend/internal/repo"
)

// Sender is the subset of *tgbotapi.BotAPI used for delivery.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier renders a purchase into the shared purchases chat and,
// once the request left NEW, notifies the requester privately.
//
// The first delivery posts a message and remembers it as a ChatLink; later
// deliveries edit that message in place.
type TelegramNotifier struct {
	DB              *gorm.DB
	Bot             Sender
	ChatID          int64 // shared purchases chat; 0 disables chat posts
	NotifyRequester bool
}

// Deliver implements the outbox deliverer contract. It reloads the purchase
// so the message always reflects the committed state.
func (n *TelegramNotifier) Deliver(ctx context.Context, purchaseID int64) error {
	if n.Bot == nil {
		return errors.New("telegram: no bot configured")
	}
	p, err := repo.GetPurchase(ctx, n.DB, purchaseID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrPurchaseGone, purchaseID)
		}
		return err
	}

	msg := Render(p)
	if n.ChatID != 0 {
		if err := n.upsertChatMessage(ctx, p.ID, msg.Chat); err != nil {
			return err
		}
	}
	if n.NotifyRequester && p.Status != domain.StatusNew && p.RequesterID != 0 {
		if _, err := n.send(ctx, tgbotapi.NewMessage(p.RequesterID, msg.Requester), "private"); err != nil {
			return err
		}
	}
	return nil
}

func (n *TelegramNotifier) upsertChatMessage(ctx context.Context, purchaseID int64, text string) error {
	link, err := repo.GetChatLink(ctx, n.DB, purchaseID)
	switch {
	case err == nil && link.ChatID == n.ChatID:
		_, err := n.send(ctx, tgbotapi.NewEditMessageText(link.ChatID, link.MessageID, text), "edit")
		if err == nil || isNotModified(err) {
			return nil
		}
		if !isMessageGone(err) {
			return err
		}
		log.Warn().Int64("purchase_id", purchaseID).Int("message_id", link.MessageID).
			Msg("linked chat message is gone; posting a new one")
	case err != nil && !errors.Is(err, repo.ErrNotFound):
		return err
	}

	sent, err := n.send(ctx, tgbotapi.NewMessage(n.ChatID, text), "new")
	if err != nil {
		return err
	}
	return repo.UpsertChatLink(ctx, n.DB, purchaseID, n.ChatID, sent.MessageID)
}

// send runs the Bot API call under ctx. When ctx expires first the call
// keeps running in the background until the bot's HTTP client gives up, so
// production bots must come from NewHTTPClient.
func (n *TelegramNotifier) send(ctx context.Context, c tgbotapi.Chattable, msgType string) (tgbotapi.Message, error) {
	type result struct {
		msg tgbotapi.Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		m, err := n.Bot.Send(c)
		done <- result{m, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		res.err = ctx.Err()
	case res = <-done:
	}

	if res.err != nil {
		tgSent.WithLabelValues("error", msgType).Inc()
		return res.msg, wrapAPIError(res.err)
	}
	tgSent.WithLabelValues("success", msgType).Inc()
	return res.msg, nil
}

// wrapAPIError marks Bot API answers that are worth retrying. A body that is
// not JSON at all (an HTML error page from a proxy in front of the API) is
// treated as a transport failure.
func wrapAPIError(err error) error {
	err = redact(err)
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &TransportError{Category: CategoryIO, Err: err}
	}
	low := strings.ToLower(err.Error())
	switch {
	case strings.Contains(low, "too many requests"),
		strings.Contains(low, "internal server error"),
		strings.Contains(low, "bad gateway"),
		strings.Contains(low, "gateway timeout"),
		strings.Contains(low, "service unavailable"):
		return &TransportError{Category: CategoryIO, Err: err}
	}
	return err
}

func isNotModified(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}

func isMessageGone(err error) bool {
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "message to edit not found") ||
		strings.Contains(low, "message can't be edited")
}

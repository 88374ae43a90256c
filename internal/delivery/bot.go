package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/rs/zerolog/log"
)

// NewHTTPClient returns the client used for Bot API calls. Every request,
// including ones whose caller stopped waiting, ends within timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// ConnectBot authenticates token against the Bot API (getMe), retrying up to
// attempts times with delay in between.
func ConnectBot(ctx context.Context, token string, client *http.Client, attempts int, delay time.Duration) (*tgbotapi.BotAPI, error) {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; ; i++ {
		var bot *tgbotapi.BotAPI
		bot, err = tgbotapi.NewBotAPIWithClient(token, client)
		if err == nil {
			return bot, nil
		}
		err = redact(err)
		if i >= attempts {
			break
		}
		log.Warn().Err(err).Int("attempt", i).Dur("retry_in", delay).Msg("telegram connect failed")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return nil, fmt.Errorf("telegram connect: %w", err)
}

// redact strips the bot token from URLs carried by transport errors.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = redactURL(ue.URL)
	}
	return err
}

func redactURL(raw string) string {
	i := strings.Index(raw, "/bot")
	if i < 0 {
		return raw
	}
	rest := raw[i+len("/bot"):]
	if j := strings.Index(rest, "/"); j >= 0 {
		return raw[:i] + "/bot<redacted>" + rest[j:]
	}
	return raw[:i] + "/bot<redacted>"
}

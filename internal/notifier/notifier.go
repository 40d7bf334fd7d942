// Package notifier is the Notifier (§4.5): a single fire-and-forget
// notify(text) operation against a Telegram chat, with optional outbound
// proxy and swallow-after-log error handling so a notification failure
// never blocks a script's result path.
package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/scriptd/scriptd/internal/backoff"
	"github.com/scriptd/scriptd/internal/logger"
)

// Credentials is the chat channel configuration read from settings
// (tg_bot_token, tg_chat_id, tg_proxy — §3.2).
type Credentials struct {
	BotToken string
	ChatID   int64
	ProxyURL string
}

// Empty reports whether no bot token is configured, meaning notifications
// are disabled.
func (c Credentials) Empty() bool {
	return c.BotToken == ""
}

// Notifier sends one-line summaries to a Telegram chat. Credentials can be
// swapped live via SetCredentials (POST /settings/apply, §6), so the
// Supervisor and Health Checker can hold a single long-lived instance rather
// than being rebuilt on every settings change.
type Notifier struct {
	mu    sync.RWMutex
	creds Credentials
	retry backoff.RetryPolicy
}

// New builds a Notifier for the given credentials. A zero-value
// Credentials produces a Notifier whose Notify calls are always no-ops.
func New(creds Credentials) *Notifier {
	policy := backoff.NewExponentialBackoffPolicy(500 * time.Millisecond)
	policy.MaxRetries = 3
	return &Notifier{creds: creds, retry: policy}
}

// SetCredentials replaces the chat credentials in use, taking effect on the
// next Notify call.
func (n *Notifier) SetCredentials(creds Credentials) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.creds = creds
}

func (n *Notifier) credentials() Credentials {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.creds
}

// Notify sends text to the configured chat. Every error is logged and
// swallowed: per §4.5 and §7, notification failures never propagate to a
// script's result path.
func (n *Notifier) Notify(ctx context.Context, text string) {
	creds := n.credentials()
	if creds.Empty() {
		return
	}
	bot, err := newBot(creds)
	if err != nil {
		logger.Error(ctx, "notifier: build bot client failed", "error", err)
		return
	}
	msg := tgbotapi.NewMessage(creds.ChatID, text)

	err = backoff.Do(ctx, n.retry, func() error {
		_, sendErr := bot.Send(msg)
		return sendErr
	})
	if err != nil {
		logger.Error(ctx, "notifier: send failed, giving up", "error", err)
	}
}

// NotifyWith sends text using creds directly, bypassing the Notifier's
// configured credentials (POST /test-tg, §6: one-shot notify with
// arbitrary creds).
func NotifyWith(ctx context.Context, creds Credentials, text string) error {
	if creds.Empty() {
		return fmt.Errorf("notifier: bot token required")
	}
	bot, err := newBot(creds)
	if err != nil {
		return err
	}
	_, err = bot.Send(tgbotapi.NewMessage(creds.ChatID, text))
	return err
}

func newBot(creds Credentials) (*tgbotapi.BotAPI, error) {
	client := &http.Client{Timeout: 15 * time.Second}
	if creds.ProxyURL != "" {
		proxyURL, err := url.Parse(creds.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse tg_proxy: %w", err)
		}
		client.Transport = &http.Transport{
			Proxy:           http.ProxyURL(proxyURL),
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(creds.BotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("new bot api: %w", err)
	}
	return bot, nil
}

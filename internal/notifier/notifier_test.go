package notifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredentials_Empty(t *testing.T) {
	assert.True(t, Credentials{}.Empty())
	assert.False(t, Credentials{BotToken: "abc"}.Empty())
}

func TestNotifier_Notify_NoopWhenCredentialsEmpty(t *testing.T) {
	n := New(Credentials{})
	// Must not panic or attempt any network call.
	n.Notify(context.Background(), "hello")
}

func TestNotifier_Notify_InvalidProxyLoggedAndSwallowed(t *testing.T) {
	n := New(Credentials{BotToken: "dummy-token", ChatID: 1, ProxyURL: "://bad-url"})
	// Must not panic; the malformed proxy URL is logged, not returned.
	n.Notify(context.Background(), "hello")
}

func TestNotifier_SetCredentials_NoopBecomesActive(t *testing.T) {
	n := New(Credentials{})
	assert.True(t, n.credentials().Empty())
	n.SetCredentials(Credentials{BotToken: "dummy-token", ChatID: 42})
	assert.False(t, n.credentials().Empty())
	assert.Equal(t, int64(42), n.credentials().ChatID)
}

func TestNotifyWith_EmptyCredentialsErrors(t *testing.T) {
	err := NotifyWith(context.Background(), Credentials{}, "hello")
	assert.Error(t, err)
}

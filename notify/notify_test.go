package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/marketauth/account"
)

type recordingMailer struct {
	mu   sync.Mutex
	msgs []Message
	err  error
	got  chan struct{}
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{got: make(chan struct{}, 16)}
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()
	m.got <- struct{}{}
	return m.err
}

func sampleNotice() PasswordResetNotice {
	return PasswordResetNotice{
		Address:       "vendor@example.com",
		DisplayName:   "Acme Goods",
		Link:          "https://sell.example.com/reset?token=abc&email=vendor%40example.com",
		ExpiryMinutes: 60,
		Origin:        "203.0.113.7",
		Kind:          account.KindVendor,
		Template:      "vendor_password_reset",
	}
}

func TestRenderUsesNamedTemplate(t *testing.T) {
	msg, err := Render(sampleNotice())
	require.NoError(t, err)
	assert.Equal(t, "vendor@example.com", msg.To)
	assert.Equal(t, "Reset your seller account password", msg.Subject)
	assert.Contains(t, msg.Body, "valid for 60 minutes")
	assert.Contains(t, msg.Body, "203.0.113.7")
	assert.Contains(t, msg.Body, "token=abc&email=vendor%40example.com")
}

func TestRenderDefaultAndUnknown(t *testing.T) {
	n := sampleNotice()
	n.Template = ""
	msg, err := Render(n)
	require.NoError(t, err)
	assert.Equal(t, "Reset your password", msg.Subject)

	n.Template = "nope"
	_, err = Render(n)
	assert.Error(t, err)
	assert.False(t, KnownTemplate("nope"))
	assert.True(t, KnownTemplate("admin_password_reset"))
}

func TestChannelQueueFullAndClosed(t *testing.T) {
	q := NewChannelQueue(1)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, sampleNotice()))
	assert.ErrorIs(t, q.Enqueue(ctx, sampleNotice()), ErrQueueFull)

	n, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "vendor@example.com", n.Address)

	q.Close()
	assert.ErrorIs(t, q.Enqueue(ctx, sampleNotice()), ErrQueueClosed)
	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestRedisQueueRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	q := NewRedisQueue(rdb, "")
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, sampleNotice()))
	second := sampleNotice()
	second.Address = "other@example.com"
	require.NoError(t, q.Enqueue(ctx, second))

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "vendor@example.com", first.Address, "FIFO order")
	assert.Equal(t, account.KindVendor, first.Kind)

	next, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "other@example.com", next.Address)
}

func TestWorkerDeliversAndStopsOnClose(t *testing.T) {
	q := NewChannelQueue(4)
	mailer := newRecordingMailer()
	w := NewWorker(q, mailer, WorkerConfig{}, nil)

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, sampleNotice()))
	bad := sampleNotice()
	bad.Template = "missing"
	require.NoError(t, q.Enqueue(ctx, bad))

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-mailer.got:
	case <-time.After(2 * time.Second):
		t.Fatal("mail not delivered")
	}
	q.Close()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, uint64(1), w.Sent())
	assert.Equal(t, uint64(1), w.Failed())
	require.Len(t, mailer.msgs, 1)
	assert.True(t, strings.HasPrefix(mailer.msgs[0].Body, "Hello Acme Goods"))
}

func TestWorkerCountsMailerFailure(t *testing.T) {
	q := NewChannelQueue(1)
	mailer := newRecordingMailer()
	mailer.err = errors.New("relay down")
	w := NewWorker(q, mailer, WorkerConfig{PerSecond: 100, Burst: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.Enqueue(ctx, sampleNotice()))
	go func() { _ = w.Run(ctx) }()

	select {
	case <-mailer.got:
	case <-time.After(2 * time.Second):
		t.Fatal("mailer not called")
	}
	require.Eventually(t, func() bool { return w.Failed() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(0), w.Sent())
}

func TestBuildMsgHeaders(t *testing.T) {
	msg, err := Render(sampleNotice())
	require.NoError(t, err)
	out, err := buildMsg("noreply@example.com", "Market", msg)
	require.NoError(t, err)
	assert.Equal(t, []string{"Reset your seller account password"}, out.GetGenHeader("Subject"))
	rcpts, err := out.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor@example.com"}, rcpts)

	_, err = buildMsg("not an address", "", msg)
	assert.Error(t, err)
}

func TestNewSMTPMailerRequiresHost(t *testing.T) {
	_, err := NewSMTPMailer(SMTPConfig{})
	assert.Error(t, err)
	m, err := NewSMTPMailer(SMTPConfig{Host: "localhost", From: "noreply@example.com", Opportunistic: true})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

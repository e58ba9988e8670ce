package whatsapp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whatsapp-automation/broadcaster/internal/antiban"
	"github.com/whatsapp-automation/broadcaster/internal/delivery"
	"github.com/whatsapp-automation/broadcaster/internal/logging"
)

func init() {
	logging.Quiet()
}

type fakeConn struct {
	loggedIn   func(call int) bool
	registered map[string]bool
	sendErr    error

	loggedInCalls int
	sent          []string
}

func (c *fakeConn) LoggedIn() bool {
	call := c.loggedInCalls
	c.loggedInCalls++
	if c.loggedIn == nil {
		return true
	}
	return c.loggedIn(call)
}

func (c *fakeConn) Registered(_ context.Context, phone string) (bool, error) {
	if c.registered == nil {
		return true, nil
	}
	return c.registered[phone], nil
}

func (c *fakeConn) Typing(context.Context) error { return nil }

func (c *fakeConn) Send(_ context.Context, phone, text string) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, phone+":"+text)
	return nil
}

type sleeper struct {
	slept  []time.Duration
	cancel func()
	after  int
}

func (s *sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	if s.cancel != nil && len(s.slept) == s.after {
		s.cancel()
	}
	return ctx.Err()
}

func testPacer(s antiban.Sleeper) *antiban.Pacer {
	return antiban.NewPacer(antiban.Policy{
		PreSend:        antiban.Fixed(10 * time.Second),
		Settle:         time.Second,
		PreSubmit:      antiban.Fixed(4 * time.Second),
		PostSubmit:     antiban.Fixed(6 * time.Second),
		ComposeTimeout: 15 * time.Second,
		PollInterval:   2 * time.Second,
		BatchSize:      50,
		BatchPause:     time.Minute,
	}, s)
}

func TestSenderSent(t *testing.T) {
	conn := &fakeConn{}
	sl := &sleeper{}
	s := NewSender(conn, testPacer(sl))

	outcome, err := s.AttemptSend(context.Background(), "5511987654321", "hi")
	require.NoError(t, err)
	assert.Equal(t, delivery.Sent, outcome)
	assert.Equal(t, []string{"5511987654321:hi"}, conn.sent)
	assert.Equal(t, []time.Duration{10 * time.Second, 4 * time.Second, 6 * time.Second}, sl.slept)
}

func TestSenderInvalidNumber(t *testing.T) {
	conn := &fakeConn{registered: map[string]bool{}}
	s := NewSender(conn, testPacer(&sleeper{}))

	outcome, err := s.AttemptSend(context.Background(), "5511987654321", "hi")
	require.NoError(t, err)
	assert.Equal(t, delivery.InvalidNumber, outcome)
	assert.Empty(t, conn.sent)
}

func TestSenderSendErrorSkips(t *testing.T) {
	conn := &fakeConn{sendErr: errors.New("boom")}
	s := NewSender(conn, testPacer(&sleeper{}))

	outcome, err := s.AttemptSend(context.Background(), "5511987654321", "hi")
	require.NoError(t, err)
	assert.Equal(t, delivery.SkippedUnknownFailure, outcome)
}

func TestSenderWaitsForReconnect(t *testing.T) {
	// logged out for the first check and two polls, then back
	conn := &fakeConn{loggedIn: func(call int) bool { return call >= 3 }}
	sl := &sleeper{}
	s := NewSender(conn, testPacer(sl))

	var lost, restored int
	s.Hooks.SessionLost = func(context.Context, string) { lost++ }
	s.Hooks.SessionRestored = func(context.Context, string, time.Duration) { restored++ }

	outcome, err := s.AttemptSend(context.Background(), "5511987654321", "hi")
	require.NoError(t, err)
	assert.Equal(t, delivery.Sent, outcome)
	assert.Len(t, conn.sent, 1)
	assert.Equal(t, 1, lost)
	assert.Equal(t, 1, restored)
	assert.Equal(t, []time.Duration{
		10 * time.Second,
		2 * time.Second, 2 * time.Second,
		10 * time.Second, 4 * time.Second, 6 * time.Second,
	}, sl.slept)
}

func TestSenderRetriesAreBounded(t *testing.T) {
	// reconnects each time it is polled, drops again on the next attempt
	conn := &fakeConn{loggedIn: func(call int) bool { return call%2 == 1 }}
	s := NewSender(conn, testPacer(&sleeper{}))
	s.MaxSessionRetries = 2

	outcome, err := s.AttemptSend(context.Background(), "5511987654321", "hi")
	require.NoError(t, err)
	assert.Equal(t, delivery.SkippedUnknownFailure, outcome)
	assert.Empty(t, conn.sent)
}

func TestSenderInterruptAfterSubmitCountsAsSent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn := &fakeConn{}
	s := NewSender(conn, testPacer(&sleeper{cancel: cancel, after: 3}))

	outcome, err := s.AttemptSend(ctx, "5511987654321", "hi")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, delivery.Sent, outcome)
}

func TestParseJID(t *testing.T) {
	jid, err := parseJID(" +5511987654321 ")
	require.NoError(t, err)
	assert.Equal(t, "5511987654321", jid.User)
	assert.Equal(t, "s.whatsapp.net", jid.Server)

	_, err = parseJID("")
	assert.Error(t, err)
}

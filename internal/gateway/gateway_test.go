package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chitti-game/chitti-server/internal/game"
	"github.com/chitti-game/chitti-server/internal/server"
)

type recorder struct {
	commands  chan server.Command
	callbacks chan server.Callback
	updates   chan server.ChatUpdate
}

func newRecorder() *recorder {
	return &recorder{
		commands:  make(chan server.Command, 16),
		callbacks: make(chan server.Callback, 16),
		updates:   make(chan server.ChatUpdate, 16),
	}
}

func (r *recorder) HandleCommand(_ context.Context, cmd server.Command) { r.commands <- cmd }

func (r *recorder) HandleCallback(_ context.Context, cb server.Callback) { r.callbacks <- cb }

func (r *recorder) HandleChatUpdate(_ context.Context, u server.ChatUpdate) { r.updates <- u }

func setup(t *testing.T, cfg Config) (*Gateway, *recorder, string) {
	t.Helper()
	gw := New(cfg, zaptest.NewLogger(t))
	rec := newRecorder()
	gw.SetHandler(rec)
	srv := httptest.NewServer(gw)
	t.Cleanup(func() {
		gw.Close()
		srv.Close()
	})
	return gw, rec, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, user int, name string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"/?user_id="+strconv.Itoa(user)+"&name="+name, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) outbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var out outbound
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

func nextCommand(t *testing.T, rec *recorder) server.Command {
	t.Helper()
	select {
	case cmd := <-rec.commands:
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("no command dispatched")
		return server.Command{}
	}
}

func nextCallback(t *testing.T, rec *recorder) server.Callback {
	t.Helper()
	select {
	case cb := <-rec.callbacks:
		return cb
	case <-time.After(2 * time.Second):
		t.Fatal("no callback dispatched")
		return server.Callback{}
	}
}

func TestRejectsMissingUserID(t *testing.T) {
	_, _, url := setup(t, Config{})
	_, resp, err := websocket.DefaultDialer.Dial(url+"/?name=x", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPrivateStartEnablesDirectMessages(t *testing.T) {
	gw, rec, url := setup(t, Config{})
	conn := dial(t, url, 1, "alice")
	ctx := context.Background()

	assert.False(t, gw.CanDirectMessage(ctx, 1))
	require.NoError(t, conn.WriteJSON(inbound{Type: frameCommand, Text: "/start"}))

	cmd := nextCommand(t, rec)
	assert.True(t, cmd.Private)
	assert.Equal(t, game.ChatID(1), cmd.ChatID)
	assert.Equal(t, "alice", cmd.From.Name)
	assert.True(t, gw.CanDirectMessage(ctx, 1))
	assert.False(t, gw.CanDirectMessage(ctx, 2))

	ref, err := gw.SendDirect(ctx, 1, "hello", server.Keyboard{{{Text: "go", Data: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, game.ChatID(1), ref.ChatID)

	out := readFrame(t, conn)
	assert.Equal(t, frameMessage, out.Type)
	assert.Zero(t, out.ChatID, "direct messages carry chat 0")
	assert.Equal(t, ref.MessageID, out.MessageID)
	assert.Equal(t, "hello", out.Text)
	assert.Equal(t, "x", out.Buttons[0][0].Data)

	_, err = gw.SendDirect(ctx, 9, "nobody", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestGroupChatMembership(t *testing.T) {
	gw, rec, url := setup(t, Config{OwnerID: 99})
	alice := dial(t, url, 1, "alice")
	bob := dial(t, url, 2, "bob")
	ctx := context.Background()

	require.NoError(t, bob.WriteJSON(inbound{Type: frameCommand, ChatID: -100, Text: "/game"}))
	assert.Equal(t, frameError, readFrame(t, bob).Type)

	require.NoError(t, alice.WriteJSON(inbound{Type: frameJoinChat, ChatID: -100, ChatTitle: "fruit"}))
	require.Eventually(t, func() bool { return gw.IsChatAdmin(ctx, -100, 1) }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, bob.WriteJSON(inbound{Type: frameJoinChat, ChatID: -100}))
	require.NoError(t, bob.WriteJSON(inbound{Type: frameCommand, ChatID: -100, Text: "/game"}))

	cmd := nextCommand(t, rec)
	assert.False(t, cmd.Private)
	assert.Equal(t, game.ChatID(-100), cmd.ChatID)
	assert.Equal(t, "fruit", cmd.ChatTitle)
	assert.Equal(t, game.PlayerID(2), cmd.From.ID)

	assert.True(t, gw.IsChatAdmin(ctx, -100, 1), "first member administers the chat")
	assert.False(t, gw.IsChatAdmin(ctx, -100, 2))
	assert.True(t, gw.IsChatAdmin(ctx, -100, 99), "owner administers every chat")

	ref, err := gw.SendMessage(ctx, -100, "to everyone", nil)
	require.NoError(t, err)
	for _, c := range []*websocket.Conn{alice, bob} {
		out := readFrame(t, c)
		assert.Equal(t, int64(-100), out.ChatID)
		assert.Equal(t, "to everyone", out.Text)
	}

	require.NoError(t, gw.EditMessage(ctx, ref, "edited", nil))
	out := readFrame(t, alice)
	assert.Equal(t, frameEdit, out.Type)
	assert.Equal(t, ref.MessageID, out.MessageID)

	_, err = gw.SendMessage(ctx, -200, "nowhere", nil)
	assert.ErrorIs(t, err, ErrUnknownChat)

	require.NoError(t, alice.WriteJSON(inbound{Type: frameJoinChat, ChatID: 5}))
	assert.Equal(t, frameError, readFrame(t, alice).Type)
}

func nextUpdate(t *testing.T, rec *recorder) server.ChatUpdate {
	t.Helper()
	select {
	case u := <-rec.updates:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no chat update dispatched")
		return server.ChatUpdate{}
	}
}

func isMember(gw *Gateway, chat game.ChatID, user game.PlayerID) bool {
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	room, ok := gw.chats[chat]
	if !ok {
		return false
	}
	_, member := room.members[user]
	return member
}

func TestChatJoinAndLeave(t *testing.T) {
	gw, rec, url := setup(t, Config{})
	alice := dial(t, url, 1, "alice")
	bob := dial(t, url, 2, "bob")
	ctx := context.Background()

	require.NoError(t, alice.WriteJSON(inbound{Type: frameJoinChat, ChatID: -100, ChatTitle: "fruit"}))
	assert.Equal(t, server.ChatUpdate{ChatID: -100, Title: "fruit", Added: true}, nextUpdate(t, rec))

	require.NoError(t, bob.WriteJSON(inbound{Type: frameJoinChat, ChatID: -100}))
	require.Eventually(t, func() bool { return isMember(gw, -100, 2) }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, alice.WriteJSON(inbound{Type: frameLeaveChat, ChatID: -100}))
	require.Eventually(t, func() bool { return gw.IsChatAdmin(ctx, -100, 2) }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, gw.IsChatAdmin(ctx, -100, 1))

	require.NoError(t, alice.WriteJSON(inbound{Type: frameCommand, ChatID: -100, Text: "/game"}))
	assert.Equal(t, frameError, readFrame(t, alice).Type, "a departed member can no longer post")

	require.NoError(t, bob.WriteJSON(inbound{Type: frameLeaveChat, ChatID: -100}))
	assert.Equal(t, server.ChatUpdate{ChatID: -100}, nextUpdate(t, rec))
	_, err := gw.SendMessage(ctx, -100, "anyone?", nil)
	assert.ErrorIs(t, err, ErrUnknownChat)

	require.NoError(t, bob.WriteJSON(inbound{Type: frameLeaveChat, ChatID: -100}))
	assert.Equal(t, frameError, readFrame(t, bob).Type)
	assert.Empty(t, rec.updates, "only the first join and the last leave are reported")
}

func TestCallbackRoundTrip(t *testing.T) {
	gw, rec, url := setup(t, Config{})
	conn := dial(t, url, 3, "carol")

	require.NoError(t, conn.WriteJSON(inbound{Type: frameCallback, MessageID: 7, Data: "game_rules"}))
	cb := nextCallback(t, rec)
	assert.Equal(t, game.ButtonRef{ChatID: 3, MessageID: 7}, cb.Message)
	assert.Equal(t, "game_rules", cb.Data)
	require.NotEmpty(t, cb.ID)

	require.NoError(t, gw.AnswerCallback(context.Background(), cb.ID, "done", true))
	out := readFrame(t, conn)
	assert.Equal(t, frameAnswer, out.Type)
	assert.Equal(t, cb.ID, out.CallbackID)
	assert.True(t, out.Alert)

	assert.ErrorIs(t, gw.AnswerCallback(context.Background(), cb.ID, "again", false), ErrUnknownQuery)
}

func TestUnknownFrameType(t *testing.T) {
	_, _, url := setup(t, Config{})
	conn := dial(t, url, 4, "dave")

	require.NoError(t, conn.WriteJSON(inbound{Type: "dance"}))
	assert.Equal(t, frameError, readFrame(t, conn).Type)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	assert.Equal(t, frameError, readFrame(t, conn).Type)
}

func TestReconnectReplacesConnection(t *testing.T) {
	gw, _, url := setup(t, Config{})
	first := dial(t, url, 5, "erin")
	require.Eventually(t, func() bool { return gw.Connections() == 1 }, 2*time.Second, 10*time.Millisecond)

	second := dial(t, url, 5, "erin")
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	assert.Error(t, err, "the replaced connection is closed")

	_, err = gw.SendDirect(context.Background(), 5, "still here", nil)
	require.NoError(t, err)
	assert.Equal(t, "still here", readFrame(t, second).Text)
	assert.Equal(t, 1, gw.Connections())
}

func TestMentionFallsBack(t *testing.T) {
	gw, _, url := setup(t, Config{})
	dial(t, url, 6, "frank")
	require.Eventually(t, func() bool { return gw.Connections() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	assert.Equal(t, "given", gw.Mention(ctx, 6, "given"))
	assert.Equal(t, "frank", gw.Mention(ctx, 6, ""))
	assert.Equal(t, "user42", gw.Mention(ctx, 42, ""))
}

func TestOriginCheck(t *testing.T) {
	_, _, url := setup(t, Config{AllowedOrigins: []string{"https://chitti.example"}})

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url+"/?user_id=1", header)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://chitti.example")
	conn, _, err := websocket.DefaultDialer.Dial(url+"/?user_id=1", header)
	require.NoError(t, err)
	_ = conn.Close()
}

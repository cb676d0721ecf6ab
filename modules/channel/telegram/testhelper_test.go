package telegram

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"gopkg.in/telebot.v3"

	"github.com/flemzord/tgrelay/internal/bus"
	"github.com/flemzord/tgrelay/internal/channel"
)

const (
	testToken = "123456:test-token"
	botUserID = 999
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

// apiCall is one recorded Bot API request.
type apiCall struct {
	Method string
	Params map[string]any
}

// fakeAPI is a minimal Bot API server.
type fakeAPI struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	calls    []apiCall
	nextID   int
	files    map[string][]byte
	chats    map[int64]string
	admins   map[int64][]int64
	failSend bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		t:      t,
		nextID: 100,
		files:  make(map[string][]byte),
		chats:  make(map[int64]string),
		admins: make(map[int64][]int64),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	if path, ok := strings.CutPrefix(r.URL.Path, "/file/bot"+testToken+"/"); ok {
		f.mu.Lock()
		data, found := f.files[strings.TrimPrefix(path, "files/")]
		f.mu.Unlock()
		if !found {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
		return
	}

	method, ok := strings.CutPrefix(r.URL.Path, "/bot"+testToken+"/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	params := map[string]any{}
	body, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(body, &params)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Params: params})
	f.mu.Unlock()

	switch method {
	case "getMe":
		f.ok(w, map[string]any{"id": botUserID, "is_bot": true, "first_name": "Relay", "username": "relay_bot"})
	case "sendMessage":
		f.mu.Lock()
		fail := f.failSend
		f.nextID++
		id := f.nextID
		f.mu.Unlock()
		if fail {
			f.fail(w, http.StatusBadRequest, "Bad Request: chat not found")
			return
		}
		chatID := paramInt(params["chat_id"])
		f.ok(w, map[string]any{
			"message_id": id,
			"date":       1700000000,
			"chat":       map[string]any{"id": chatID, "type": "private"},
			"text":       params["text"],
		})
	case "getUpdates":
		// Hold the long poll open until the client gives up on it.
		timeout, _ := strconv.Atoi(fmt.Sprint(params["timeout"]))
		select {
		case <-r.Context().Done():
			return
		case <-time.After(time.Duration(timeout) * time.Second):
		}
		f.ok(w, []any{})
	case "sendChatAction", "deleteWebhook", "setWebhook":
		f.ok(w, true)
	case "getFile":
		fileID, _ := params["file_id"].(string)
		f.mu.Lock()
		data, found := f.files[fileID]
		f.mu.Unlock()
		if !found {
			f.fail(w, http.StatusBadRequest, "Bad Request: invalid file_id")
			return
		}
		f.ok(w, map[string]any{"file_id": fileID, "file_size": len(data), "file_path": "files/" + fileID})
	case "getChat":
		chatID := paramInt(params["chat_id"])
		f.mu.Lock()
		title, found := f.chats[chatID]
		f.mu.Unlock()
		if !found {
			f.fail(w, http.StatusBadRequest, "Bad Request: chat not found")
			return
		}
		f.ok(w, map[string]any{"id": chatID, "type": "group", "title": title})
	case "getChatAdministrators":
		chatID := paramInt(params["chat_id"])
		f.mu.Lock()
		ids := f.admins[chatID]
		f.mu.Unlock()
		members := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			members = append(members, map[string]any{
				"status": "administrator",
				"user":   map[string]any{"id": id, "first_name": fmt.Sprintf("admin%d", id)},
			})
		}
		f.ok(w, members)
	default:
		f.fail(w, http.StatusNotFound, "Not Found: method "+method)
	}
}

func (f *fakeAPI) ok(w http.ResponseWriter, result any) {
	writeJSON(f.t, w, map[string]any{"ok": true, "result": result})
}

func (f *fakeAPI) fail(w http.ResponseWriter, code int, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": code, "description": description})
}

func (f *fakeAPI) callsTo(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeAPI) addFile(id string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[id] = data
}

func (f *fakeAPI) addChat(id int64, title string, admins ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats[id] = title
	f.admins[id] = admins
}

func (f *fakeAPI) bot(t *testing.T) *telebot.Bot {
	t.Helper()
	b, err := telebot.NewBot(telebot.Settings{
		Token:       testToken,
		URL:         f.server.URL,
		Synchronous: true,
		Client:      f.server.Client(),
	})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	return b
}

// paramInt reads a numeric parameter that telebot may encode as a string.
func paramInt(v any) int64 {
	switch x := v.(type) {
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	case float64:
		return int64(x)
	}
	return 0
}

// eventLog is a Publisher that records events.
type eventLog struct {
	mu     sync.Mutex
	events []bus.Event
	notify chan struct{}
}

func newEventLog() *eventLog {
	return &eventLog{notify: make(chan struct{}, 64)}
}

func (l *eventLog) Publish(e bus.Event) error {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
	return nil
}

func (l *eventLog) All() []bus.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bus.Event(nil), l.events...)
}

func (l *eventLog) OfTopic(topic string) []bus.Event {
	var out []bus.Event
	for _, e := range l.All() {
		if e.Topic() == topic {
			out = append(out, e)
		}
	}
	return out
}

func newTestClient(t *testing.T, api *fakeAPI, cfg ClientConfig) (*Client, *eventLog) {
	t.Helper()
	events := newEventLog()
	cfg.Logger = discardLogger()
	cfg.Events = events
	if cfg.AllowList == nil {
		cfg.AllowList = channel.NewAllowList([]string{channel.Wildcard}, nil)
	}
	c := NewClient(cfg)
	t.Cleanup(c.Close)
	if api != nil {
		c.Attach(api.bot(t))
	}
	return c, events
}

func privateMessage(id int, from int64, text string) *telebot.Message {
	return &telebot.Message{
		ID:       id,
		Sender:   &telebot.User{ID: from, FirstName: "Alice"},
		Unixtime: 1700000000,
		Chat:     &telebot.Chat{ID: from, Type: telebot.ChatPrivate},
		Text:     text,
	}
}

func groupMessage(id int, chatID, from int64, text string) *telebot.Message {
	return &telebot.Message{
		ID:       id,
		Sender:   &telebot.User{ID: from, FirstName: "Bob"},
		Unixtime: 1700000000,
		Chat:     &telebot.Chat{ID: chatID, Type: telebot.ChatGroup, Title: "Ops"},
		Text:     text,
	}
}

// photoOf builds a photo through JSON so the helper does not depend on the
// integer type of File.FileSize.
func photoOf(fileID string, size int) *telebot.Photo {
	p := &telebot.Photo{}
	raw := fmt.Sprintf(`{"file_id":%q,"file_size":%d}`, fileID, size)
	if err := json.Unmarshal([]byte(raw), &p.File); err != nil {
		panic(err)
	}
	return p
}

func locationOf(lat, lng float32) *telebot.Location {
	return &telebot.Location{Lat: lat, Lng: lng}
}

func contactOf(name string) *telebot.Contact {
	return &telebot.Contact{FirstName: name, PhoneNumber: "+33100000000"}
}

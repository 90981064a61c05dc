package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thegovlab/reboot-chat/backend/internal/client/persist"
	"github.com/thegovlab/reboot-chat/backend/internal/model/chat"
	"github.com/thegovlab/reboot-chat/backend/internal/storage"
)

func streamServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frame := range frames {
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newSession(t *testing.T, endpoint string) *Session {
	t.Helper()
	s, err := New(Options{Endpoint: endpoint})
	require.NoError(t, err)
	return s
}

func lastBot(t *testing.T, s *Session) chat.Message {
	t.Helper()
	state := s.State()
	require.NotEmpty(t, state.Messages)
	msg := state.Messages[len(state.Messages)-1]
	require.Equal(t, chat.RoleBot, msg.Role)
	return msg
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrEndpointRequired)
}

func TestSubmitStreamsContent(t *testing.T) {
	srv := streamServer(t,
		"data: {\"content\":\"Hi \"}\n\n",
		"data: {\"content\":\"there!\"}\n\n",
	)
	s := newSession(t, srv.URL)

	require.NoError(t, s.Submit(context.Background(), "Hello"))

	state := s.State()
	require.Len(t, state.Messages, 2)
	assert.Equal(t, chat.Message{Role: chat.RoleUser, Content: "Hello"}, state.Messages[0])
	assert.Equal(t, "Hi there!", state.Messages[1].Content)
	assert.False(t, state.IsLoading)
	assert.NoError(t, s.LastError())
}

func TestSubmitAttachesSourceDocuments(t *testing.T) {
	srv := streamServer(t,
		"data: {\"content\":\"See below.\"}\n\n",
		"data: {\"sourceDocuments\":[{\"title\":\"Doc A\",\"url\":\"http://x\"}]}\n\n",
		"data: [DONE]\n\n",
	)
	s := newSession(t, srv.URL)

	require.NoError(t, s.Submit(context.Background(), "cite?"))

	bot := lastBot(t, s)
	assert.Equal(t, "See below.", bot.Content)
	assert.Equal(t, []chat.SourceDocument{{Title: "Doc A", URL: "http://x"}}, bot.SourceDocuments)
}

func TestSubmitServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	s := newSession(t, srv.URL)

	require.NoError(t, s.Submit(context.Background(), "Hello"))

	assert.Equal(t, FailureMessage, lastBot(t, s).Content)
	assert.False(t, s.State().IsLoading)

	var transportErr *TransportError
	require.ErrorAs(t, s.LastError(), &transportErr)
	assert.Equal(t, http.StatusServiceUnavailable, transportErr.StatusCode)
}

func TestSubmitBlankIsNoop(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	t.Cleanup(srv.Close)
	s := newSession(t, srv.URL)
	s.SetDraft("   ")

	for _, text := range []string{"", "   ", "\n\t"} {
		assert.ErrorIs(t, s.Submit(context.Background(), text), ErrEmptySubmission)
	}

	state := s.State()
	assert.Empty(t, state.Messages)
	assert.False(t, state.IsLoading)
	assert.Equal(t, "   ", state.DraftInput)
	assert.Zero(t, calls)
}

func TestSubmitWhileInFlightIsNoop(t *testing.T) {
	release := make(chan struct{})
	received := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(received)
		<-release
		fmt.Fprint(w, "data: {\"content\":\"first\"}\n\n")
	}))
	t.Cleanup(srv.Close)
	s := newSession(t, srv.URL)

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), "a") }()
	<-received

	assert.True(t, s.State().IsLoading)
	assert.ErrorIs(t, s.Submit(context.Background(), "b"), ErrRequestInFlight)

	close(release)
	require.NoError(t, <-done)

	state := s.State()
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "a", state.Messages[0].Content)
	assert.Equal(t, "first", state.Messages[1].Content)
}

func TestSubmitLastSourceDocumentsWin(t *testing.T) {
	srv := streamServer(t,
		"data: {\"sourceDocuments\":[{\"title\":\"Old\",\"url\":\"http://old\"},{\"title\":\"Older\",\"url\":\"http://older\"}]}\n\n",
		"data: {\"content\":\"Answer\"}\n\n",
		"data: {\"sourceDocuments\":[{\"title\":\"New\",\"url\":\"http://new\"}]}\n\n",
	)
	s := newSession(t, srv.URL)

	require.NoError(t, s.Submit(context.Background(), "sources"))

	assert.Equal(t, []chat.SourceDocument{{Title: "New", URL: "http://new"}}, lastBot(t, s).SourceDocuments)
}

func TestSubmitServerErrorIgnoresBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "data: {\"content\":\"partial answer\"}\n\n")
	}))
	t.Cleanup(srv.Close)
	s := newSession(t, srv.URL)

	require.NoError(t, s.Submit(context.Background(), "Hello"))

	assert.Equal(t, FailureMessage, lastBot(t, s).Content)
}

func TestSubmitInterruptedStreamOverwritesPartialContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"content\":\"partial \"}\n\n")
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	}))
	t.Cleanup(srv.Close)
	s := newSession(t, srv.URL)

	require.NoError(t, s.Submit(context.Background(), "Hello"))

	assert.Equal(t, FailureMessage, lastBot(t, s).Content)
	var transportErr *TransportError
	assert.ErrorAs(t, s.LastError(), &transportErr)
}

func TestSubmitSendsConversation(t *testing.T) {
	var got chat.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, "data: {\"content\":\"two\"}\n\n")
	}))
	t.Cleanup(srv.Close)
	s := newSession(t, srv.URL)

	require.NoError(t, s.Submit(context.Background(), "one"))
	require.NoError(t, s.Submit(context.Background(), "again"))

	assert.Equal(t, "again", got.Message)
	require.Len(t, got.Conversation, 4)
	assert.Equal(t, chat.RoleBot, got.Conversation[1].Role)
	assert.Equal(t, "two", got.Conversation[1].Content)
	assert.Equal(t, chat.Message{Role: chat.RoleBot}, got.Conversation[3])
}

func TestSubmitClearsDraft(t *testing.T) {
	srv := streamServer(t, "data: {\"content\":\"ok\"}\n\n")
	s := newSession(t, srv.URL)
	s.SetDraft("Hello")

	require.NoError(t, s.Submit(context.Background(), "Hello"))

	assert.Empty(t, s.State().DraftInput)
}

func TestSubmitChunkTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"content\":\"slow\"}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	s, err := New(Options{Endpoint: srv.URL, ChunkTimeout: 50 * time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, s.Submit(context.Background(), "Hello"))

	assert.ErrorIs(t, s.LastError(), ErrChunkTimeout)
	assert.Equal(t, FailureMessage, lastBot(t, s).Content)
	assert.False(t, s.State().IsLoading)
}

func TestClosePanelCancelsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"content\":\"Partial\"}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	streaming := make(chan struct{})
	var once sync.Once
	s, err := New(Options{
		Endpoint: srv.URL,
		OnChange: func(state chat.ConversationState) {
			if n := len(state.Messages); n > 0 && state.Messages[n-1].Content == "Partial" {
				once.Do(func() { close(streaming) })
			}
		},
	})
	require.NoError(t, err)
	s.OpenPanel()

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), "Hello") }()

	select {
	case <-streaming:
	case <-time.After(5 * time.Second):
		t.Fatal("stream never delivered content")
	}
	s.ClosePanel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("submit did not return after ClosePanel")
	}

	state := s.State()
	assert.False(t, state.IsOpen)
	assert.False(t, state.IsLoading)
	assert.Equal(t, "Partial", state.Messages[1].Content)
	assert.ErrorIs(t, s.LastError(), ErrCanceled)
}

func TestCancelWithoutExchange(t *testing.T) {
	s := newSession(t, "http://127.0.0.1:0")
	assert.False(t, s.Cancel())
}

func TestPanelToggle(t *testing.T) {
	s := newSession(t, "http://127.0.0.1:0")

	s.OpenPanel()
	assert.True(t, s.State().IsOpen)
	s.ClosePanel()
	assert.False(t, s.State().IsOpen)
}

func TestMalformedFrameRecovery(t *testing.T) {
	srv := streamServer(t,
		"data: {\"content\":\"Hello\"}\n\n",
		"data: {\"content\":\" world\", oops}\n\n",
		"data: {\"content\":\"never closed\n\n",
		"data: [DONE]\n\n",
	)
	s := newSession(t, srv.URL)

	require.NoError(t, s.Submit(context.Background(), "Hi"))

	assert.Equal(t, "Hello world", lastBot(t, s).Content)
	assert.NoError(t, s.LastError())
}

func TestStateIsACopy(t *testing.T) {
	srv := streamServer(t, "data: {\"sourceDocuments\":[{\"title\":\"A\",\"url\":\"u\"}]}\n\n")
	s := newSession(t, srv.URL)
	require.NoError(t, s.Submit(context.Background(), "Hi"))

	state := s.State()
	state.Messages[1].SourceDocuments[0].Title = "mutated"
	state.Messages[0].Content = "mutated"

	fresh := s.State()
	assert.Equal(t, "A", fresh.Messages[1].SourceDocuments[0].Title)
	assert.Equal(t, "Hi", fresh.Messages[0].Content)
}

func TestResetClearsTranscript(t *testing.T) {
	srv := streamServer(t, "data: {\"content\":\"ok\"}\n\n")
	s := newSession(t, srv.URL)
	require.NoError(t, s.Submit(context.Background(), "Hi"))

	s.Reset()

	assert.Empty(t, s.State().Messages)
}

func TestResetWhileStreamingDiscardsExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"content\":\"Partial\"}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	streaming := make(chan struct{})
	var once sync.Once
	s, err := New(Options{
		Endpoint: srv.URL,
		OnChange: func(state chat.ConversationState) {
			if n := len(state.Messages); n > 0 && state.Messages[n-1].Content == "Partial" {
				once.Do(func() { close(streaming) })
			}
		},
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), "Hello") }()

	select {
	case <-streaming:
	case <-time.After(5 * time.Second):
		t.Fatal("stream never delivered content")
	}
	s.Reset()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("submit did not return after Reset")
	}

	state := s.State()
	assert.Empty(t, state.Messages)
	assert.False(t, state.IsLoading)
}

func TestLateFramesFromResetExchangeAreDropped(t *testing.T) {
	srv := streamServer(t, "data: {\"content\":\"fresh\"}\n\n")
	s := newSession(t, srv.URL)

	require.NoError(t, s.Submit(context.Background(), "first"))
	s.mu.Lock()
	staleGen := s.generation
	s.mu.Unlock()

	s.Reset()
	require.NoError(t, s.Submit(context.Background(), "second"))

	// Same bot index as the first exchange, but an older generation.
	s.apply(staleGen, 1, []string{
		"data: {\"content\":\" stale\"}",
		"data: {\"sourceDocuments\":[{\"title\":\"Old\",\"url\":\"http://old\"}]}",
	})

	bot := lastBot(t, s)
	assert.Equal(t, "fresh", bot.Content)
	assert.Empty(t, bot.SourceDocuments)
	require.Len(t, s.State().Messages, 2)
	assert.Equal(t, "second", s.State().Messages[0].Content)
}

func TestSessionPersistsAndRestores(t *testing.T) {
	srv := streamServer(t,
		"data: {\"content\":\"Stored answer\"}\n\n",
		"data: {\"sourceDocuments\":[{\"title\":\"Doc\",\"url\":\"http://doc\"}]}\n\n",
	)
	store := storage.NewMemoryStore()

	open := func(marker string) *Session {
		p, err := persist.New(store, marker)
		require.NoError(t, err)
		s, err := New(Options{Endpoint: srv.URL, Persister: p})
		require.NoError(t, err)
		return s
	}

	first := open("tab-1")
	first.OpenPanel()
	require.NoError(t, first.Submit(context.Background(), "Remember me"))

	restored := open("tab-1").State()
	assert.True(t, restored.IsOpen)
	assert.False(t, restored.IsLoading)
	require.Len(t, restored.Messages, 2)
	assert.Equal(t, "Stored answer", restored.Messages[1].Content)
	assert.Equal(t, []chat.SourceDocument{{Title: "Doc", URL: "http://doc"}}, restored.Messages[1].SourceDocuments)

	fresh := open("tab-2").State()
	assert.False(t, fresh.IsOpen)
	assert.Empty(t, fresh.Messages)
}

func TestOnChangeSeesIncrementalContent(t *testing.T) {
	srv := streamServer(t,
		"data: {\"content\":\"a\"}\n\n",
		"data: {\"content\":\"b\"}\n\n",
		"data: {\"content\":\"c\"}\n\n",
	)

	var mu sync.Mutex
	var seen []string
	s, err := New(Options{
		Endpoint: srv.URL,
		OnChange: func(state chat.ConversationState) {
			if n := len(state.Messages); n > 0 {
				mu.Lock()
				seen = append(seen, state.Messages[n-1].Content)
				mu.Unlock()
			}
		},
	})
	require.NoError(t, err)

	require.NoError(t, s.Submit(context.Background(), "go"))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, "abc", seen[len(seen)-1])
	for i := 1; i < len(seen); i++ {
		assert.True(t, strings.HasPrefix(seen[i], seen[i-1]), "content must only grow: %q then %q", seen[i-1], seen[i])
	}
}

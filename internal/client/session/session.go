// Package session drives the chat widget conversation against the streaming
// chat backend.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thegovlab/reboot-chat/backend/internal/client/persist"
	"github.com/thegovlab/reboot-chat/backend/internal/client/sse"
	"github.com/thegovlab/reboot-chat/backend/internal/model/chat"
)

// DefaultChunkTimeout bounds the wait for response headers and for each
// subsequent chunk of the stream.
const DefaultChunkTimeout = 60 * time.Second

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Session.
type Options struct {
	Endpoint     string
	Client       Doer
	ChunkTimeout time.Duration
	// Persister restores the conversation on construction and saves it
	// after each transition. Nil keeps the state in memory only.
	Persister *persist.Persister
	// OnChange receives a copy of the state after every mutation. Calls are
	// serialized. It must not call back into the session's mutating methods.
	OnChange func(chat.ConversationState)
}

// Session owns one conversation. All state changes go through its mutex, so
// at most one exchange is ever in flight.
type Session struct {
	endpoint     string
	client       Doer
	chunkTimeout time.Duration
	persister    *persist.Persister
	onChange     func(chat.ConversationState)

	mu         sync.Mutex
	state      chat.ConversationState
	generation uint64
	cancel     context.CancelFunc
	lastErr    error

	notifyMu  sync.Mutex
	persistMu sync.Mutex
}

// New builds a session and restores the persisted conversation when the
// persister's session marker matches.
func New(opts Options) (*Session, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, ErrEndpointRequired
	}

	s := &Session{
		endpoint:     opts.Endpoint,
		client:       opts.Client,
		chunkTimeout: opts.ChunkTimeout,
		persister:    opts.Persister,
		onChange:     opts.OnChange,
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	if s.chunkTimeout <= 0 {
		s.chunkTimeout = DefaultChunkTimeout
	}

	if s.persister != nil {
		snapshot, restored, err := s.persister.Load()
		switch {
		case err != nil:
			log.Printf("[chat] failed to restore conversation, starting fresh: %v", err)
		case restored:
			s.state.IsOpen = snapshot.IsOpen
			s.state.Messages = snapshot.Messages
			log.Printf("[chat] restored conversation marker=%s messages=%d", s.persister.Marker(), len(snapshot.Messages))
		}
	}

	return s, nil
}

// State returns a copy of the current conversation state.
func (s *Session) State() chat.ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// LastError returns the outcome of the most recent exchange: nil on success,
// ErrCanceled, ErrChunkTimeout or a *TransportError.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Submit sends text to the backend and streams the answer into a new bot
// message. It blocks until the exchange ends. Blank text or an exchange
// already in flight rejects the call with ErrEmptySubmission or
// ErrRequestInFlight and leaves the state untouched. Transport failures are
// not returned: the answer is replaced by FailureMessage and the cause is
// kept in LastError.
func (s *Session) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptySubmission
	}

	s.mu.Lock()
	if s.state.IsLoading {
		s.mu.Unlock()
		return ErrRequestInFlight
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel
	s.lastErr = nil
	s.state.IsLoading = true
	s.state.DraftInput = ""
	s.state.Messages = append(s.state.Messages,
		chat.Message{Role: chat.RoleUser, Content: text},
		chat.Message{Role: chat.RoleBot},
	)
	gen := s.generation
	botIdx := len(s.state.Messages) - 1
	request := chat.Request{Message: text, Conversation: chat.CloneMessages(s.state.Messages)}
	s.mu.Unlock()

	s.commit()

	err := s.exchange(ctx, gen, botIdx, request)

	s.mu.Lock()
	s.cancel = nil
	s.state.IsLoading = false
	s.lastErr = err
	switch {
	case err == nil:
	case errors.Is(err, ErrCanceled):
		log.Printf("[chat] exchange canceled")
	default:
		log.Printf("[chat] exchange failed: %v", err)
		if msg := s.botMessage(gen, botIdx); msg != nil {
			msg.Content = FailureMessage
		}
	}
	s.mu.Unlock()

	s.commit()
	return nil
}

// Cancel aborts the exchange in flight, if any, and reports whether there
// was one.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// OpenPanel shows the chat panel.
func (s *Session) OpenPanel() {
	s.setOpen(true)
}

// ClosePanel hides the chat panel and stops any answer still streaming.
func (s *Session) ClosePanel() {
	s.setOpen(false)
	s.Cancel()
}

func (s *Session) setOpen(open bool) {
	s.mu.Lock()
	s.state.IsOpen = open
	s.mu.Unlock()
	s.commit()
}

// SetDraft updates the compose box text. Drafts are not persisted.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	s.state.DraftInput = text
	s.mu.Unlock()
	s.notify()
}

// Reset clears the transcript and cancels the exchange in flight. A late
// chunk from the canceled exchange is discarded.
func (s *Session) Reset() {
	s.Cancel()

	s.mu.Lock()
	s.generation++
	s.state.Messages = nil
	s.state.DraftInput = ""
	s.lastErr = nil
	s.mu.Unlock()

	s.commit()
}

// botMessage returns the message being streamed into, or nil if the
// transcript was reset since the exchange began. Callers hold s.mu.
func (s *Session) botMessage(gen uint64, idx int) *chat.Message {
	if gen != s.generation || idx >= len(s.state.Messages) {
		return nil
	}
	return &s.state.Messages[idx]
}

func (s *Session) exchange(ctx context.Context, gen uint64, botIdx int, request chat.Request) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("encode chat request: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var timedOut atomic.Bool
	watchdog := time.AfterFunc(s.chunkTimeout, func() {
		timedOut.Store(true)
		cancel()
	})
	defer watchdog.Stop()

	err = s.stream(streamCtx, gen, botIdx, payload, watchdog)
	switch {
	case err == nil:
		return nil
	case timedOut.Load():
		return ErrChunkTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		return ErrCanceled
	default:
		return err
	}
}

func (s *Session) stream(ctx context.Context, gen uint64, botIdx int, payload []byte, watchdog *time.Timer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &TransportError{StatusCode: resp.StatusCode}
	}

	decoder := sse.NewDecoder()
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			watchdog.Reset(s.chunkTimeout)
			s.apply(gen, botIdx, decoder.Feed(buf[:n]))
		}
		if errors.Is(readErr, io.EOF) {
			s.apply(gen, botIdx, decoder.Flush())
			return nil
		}
		if readErr != nil {
			return &TransportError{Err: readErr}
		}
	}
}

func (s *Session) apply(gen uint64, botIdx int, frames []string) {
	if len(frames) == 0 {
		return
	}

	changed := false
	s.mu.Lock()
	msg := s.botMessage(gen, botIdx)
	for _, frame := range frames {
		event, err := sse.ParseFrame(frame)
		if err != nil {
			if errors.Is(err, sse.ErrMalformedFrame) {
				log.Printf("[chat] dropped frame: %v", err)
			}
			continue
		}
		if msg == nil {
			continue
		}

		switch ev := event.(type) {
		case sse.ContentChunk:
			if ev.Text != "" {
				msg.Content += ev.Text
				changed = true
			}
		case sse.SourceDocuments:
			msg.SourceDocuments = append([]chat.SourceDocument(nil), ev.Documents...)
			changed = true
		case sse.Done:
		}
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

func (s *Session) notify() {
	if s.onChange == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.onChange(s.State())
}

func (s *Session) commit() {
	s.notify()
	if s.persister == nil {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	snapshot := s.state.Snapshot()
	s.mu.Unlock()

	if err := s.persister.Save(snapshot); err != nil {
		log.Printf("[chat] failed to persist conversation: %v", err)
	}
}

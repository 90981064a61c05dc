package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/thegovlab/reboot-chat/backend/internal/client/session"
	"github.com/thegovlab/reboot-chat/backend/internal/model/chat"
)

const helpText = `Type a question and press enter. Commands:
  /open     show the chat panel
  /close    hide the chat panel and stop a streaming answer
  /reset    clear the conversation
  /history  print the conversation
  /quit     exit`

// printer mirrors session state changes to the terminal. Without a renderer
// it prints each answer as it streams; with one it renders the finished
// answer as markdown.
type printer struct {
	mu       sync.Mutex
	w        io.Writer
	renderer *glamour.TermRenderer

	streamIdx int
	printed   string
}

func newPrinter(w io.Writer, renderer *glamour.TermRenderer) *printer {
	return &printer{w: w, renderer: renderer, streamIdx: -1}
}

// update is the session OnChange hook.
func (p *printer) update(state chat.ConversationState) {
	if p.renderer != nil || !state.IsLoading || len(state.Messages) == 0 {
		return
	}
	idx := len(state.Messages) - 1
	msg := state.Messages[idx]
	if msg.Role != chat.RoleBot {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if idx != p.streamIdx {
		p.streamIdx = idx
		p.printed = ""
	}
	if !strings.HasPrefix(msg.Content, p.printed) {
		fmt.Fprintln(p.w)
		p.printed = ""
	}
	fmt.Fprint(p.w, msg.Content[len(p.printed):])
	p.printed = msg.Content
}

// finish prints whatever the live stream did not show, then the sources.
func (p *printer) finish(msg chat.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.renderer != nil:
		rendered, err := p.renderer.Render(msg.Content)
		if err != nil {
			rendered = msg.Content + "\n"
		}
		fmt.Fprint(p.w, rendered)
	case strings.HasPrefix(msg.Content, p.printed):
		fmt.Fprintln(p.w, msg.Content[len(p.printed):])
	default:
		fmt.Fprintf(p.w, "\n%s\n", msg.Content)
	}
	p.streamIdx = -1
	p.printed = ""

	printSources(p.w, msg.SourceDocuments)
}

func (p *printer) println(a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, a...)
}

func printSources(w io.Writer, docs []chat.SourceDocument) {
	if len(docs) == 0 {
		return
	}
	fmt.Fprintln(w, "Sources:")
	for _, doc := range docs {
		fmt.Fprintf(w, "  - %s <%s>\n", doc.Title, doc.URL)
	}
}

func printHistory(w io.Writer, messages []chat.Message) {
	if len(messages) == 0 {
		fmt.Fprintln(w, "(no messages yet)")
		return
	}
	for _, msg := range messages {
		label := "you"
		if msg.Role == chat.RoleBot {
			label = "bot"
		}
		fmt.Fprintf(w, "[%s] %s\n", label, msg.Content)
		printSources(w, msg.SourceDocuments)
	}
}

type repl struct {
	session   *session.Session
	out       *printer
	in        io.Reader
	interrupt func(context.Context) (context.Context, context.CancelFunc)
}

func (r *repl) run(ctx context.Context) {
	state := r.session.State()
	if len(state.Messages) > 0 {
		r.out.println(fmt.Sprintf("Restored %d messages. /history prints them.", len(state.Messages)))
	}
	r.out.println(helpText)

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprint(r.out.w, "> ")
		if !scanner.Scan() {
			return
		}
		if !r.handle(ctx, scanner.Text()) {
			return
		}
	}
}

// handle runs one input line and reports whether the loop should continue.
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return true
	case "/quit", "/exit":
		return false
	case "/help":
		r.out.println(helpText)
	case "/open":
		r.session.OpenPanel()
		r.out.println("(panel open)")
	case "/close":
		r.session.ClosePanel()
		r.out.println("(panel closed)")
	case "/reset":
		r.session.Reset()
		r.out.println("(conversation cleared)")
	case "/history":
		printHistory(r.out.w, r.session.State().Messages)
	default:
		if strings.HasPrefix(line, "/") {
			r.out.println("unknown command " + line + ", try /help")
			return true
		}
		r.submit(ctx, line)
	}
	return true
}

func (r *repl) submit(ctx context.Context, text string) {
	if !r.session.State().IsOpen {
		r.session.OpenPanel()
	}

	exchangeCtx, stop := r.interrupt(ctx)
	defer stop()

	if err := r.session.Submit(exchangeCtx, text); err != nil {
		r.out.println("error: " + err.Error())
		return
	}

	messages := r.session.State().Messages
	if len(messages) == 0 {
		return
	}
	r.out.finish(messages[len(messages)-1])

	if err := r.session.LastError(); errors.Is(err, session.ErrCanceled) {
		r.out.println("(canceled)")
	}
}

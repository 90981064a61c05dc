package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/thegovlab/reboot-chat/backend/internal/client/persist"
	"github.com/thegovlab/reboot-chat/backend/internal/client/session"
	"github.com/thegovlab/reboot-chat/backend/internal/config"
	"github.com/thegovlab/reboot-chat/backend/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	endpoint := flag.String("endpoint", cfg.Client.Endpoint, "chat backend URL")
	marker := flag.String("session", cfg.Client.SessionID, "session marker; a saved conversation is restored only when it matches")
	storeDir := flag.String("store", cfg.Client.StoreDir, "directory for the saved conversation; empty keeps it in memory")
	timeout := flag.Duration("timeout", cfg.Client.ChunkTimeout, "maximum wait for each chunk of an answer")
	markdown := flag.Bool("markdown", false, "render answers as markdown when stdout is a terminal")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	err = run(ctx, options{
		endpoint: *endpoint,
		marker:   *marker,
		storeDir: *storeDir,
		timeout:  *timeout,
		markdown: *markdown,
	}, os.Stdin, os.Stdout)
	if err != nil {
		log.Fatalf("chat client error: %v", err)
	}
}

type options struct {
	endpoint string
	marker   string
	storeDir string
	timeout  time.Duration
	markdown bool
}

// run owns the conversation store for the lifetime of the REPL and closes it
// on every return path.
func run(ctx context.Context, opts options, in io.Reader, w io.Writer) (err error) {
	if opts.marker == "" {
		opts.marker = uuid.NewString()
	}

	store, err := openStore(opts.storeDir)
	if err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close conversation store: %w", closeErr)
		}
	}()

	persister, err := persist.New(store, opts.marker)
	if err != nil {
		return fmt.Errorf("initialize persistence: %w", err)
	}

	out := newPrinter(w, newRenderer(opts.markdown))
	sess, err := session.New(session.Options{
		Endpoint:     opts.endpoint,
		ChunkTimeout: opts.timeout,
		Persister:    persister,
		OnChange:     out.update,
	})
	if err != nil {
		return fmt.Errorf("start chat session: %w", err)
	}

	log.Printf("[chat] session=%s endpoint=%s", opts.marker, opts.endpoint)
	r := &repl{session: sess, out: out, in: in, interrupt: interruptContext}
	r.run(ctx)
	return nil
}

func openStore(dir string) (storage.Store, error) {
	if dir == "" {
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.OpenPebble(dir, nil)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// newRenderer returns a glamour renderer when markdown output is wanted and
// stdout is a terminal; piped output stays plain.
func newRenderer(markdown bool) *glamour.TermRenderer {
	if !markdown || !term.IsTerminal(int(os.Stdout.Fd())) {
		return nil
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		log.Printf("[chat] markdown renderer unavailable: %v", err)
		return nil
	}
	return renderer
}

// interruptContext derives a context that Ctrl-C cancels for the duration of
// one exchange.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}

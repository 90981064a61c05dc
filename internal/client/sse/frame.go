package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/thegovlab/reboot-chat/backend/internal/model/chat"
)

const (
	// DataPrefix starts every frame that carries a payload.
	DataPrefix = "data: "
	// DoneSentinel is sent by the backend after the last payload.
	DoneSentinel = "[DONE]"
)

var (
	ErrNotData        = errors.New("sse: frame has no data prefix")
	ErrUnknownPayload = errors.New("sse: payload carries neither content nor sourceDocuments")
	ErrMalformedFrame = errors.New("sse: malformed frame")
)

// contentFragment recovers the answer text from a frame that is not valid
// JSON. Escaped quotes inside the value are honoured.
var contentFragment = regexp.MustCompile(`"content"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// Event is one decoded stream payload: ContentChunk, SourceDocuments or Done.
type Event interface {
	isEvent()
}

// ContentChunk is an incremental piece of the answer. Partial marks text
// recovered from a frame that failed to parse.
type ContentChunk struct {
	Text    string
	Partial bool
}

// SourceDocuments replaces the citation list of the answer.
type SourceDocuments struct {
	Documents []chat.SourceDocument
}

// Done marks the end of the payloads.
type Done struct{}

func (ContentChunk) isEvent()    {}
func (SourceDocuments) isEvent() {}
func (Done) isEvent()            {}

type payload struct {
	Content         *string                `json:"content"`
	SourceDocuments *[]chat.SourceDocument `json:"sourceDocuments"`
}

// ParseFrame decodes one frame produced by Decoder.
func ParseFrame(frame string) (Event, error) {
	frame = strings.TrimLeft(frame, "\r\n")
	if !strings.HasPrefix(frame, DataPrefix) {
		return nil, ErrNotData
	}
	data := strings.TrimSpace(strings.TrimPrefix(frame, DataPrefix))
	if data == DoneSentinel {
		return Done{}, nil
	}

	var p payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return recoverContent(data, err)
	}

	switch {
	case p.Content != nil && *p.Content != "":
		return ContentChunk{Text: *p.Content}, nil
	case p.SourceDocuments != nil:
		return SourceDocuments{Documents: *p.SourceDocuments}, nil
	case p.Content != nil:
		return ContentChunk{}, nil
	default:
		return nil, ErrUnknownPayload
	}
}

func recoverContent(data string, cause error) (Event, error) {
	match := contentFragment.FindStringSubmatch(data)
	if match == nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, cause)
	}

	text := match[1]
	var unquoted string
	if err := json.Unmarshal([]byte(`"`+text+`"`), &unquoted); err == nil {
		text = unquoted
	}
	return ContentChunk{Text: text, Partial: true}, nil
}

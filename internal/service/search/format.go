package search

import (
	"fmt"
	"strings"

	"github.com/thegovlab/reboot-chat/backend/internal/model/chat"
	"github.com/thegovlab/reboot-chat/backend/internal/model/document"
)

// NoResultsContext is handed to the model when the search found nothing.
const NoResultsContext = "No specific information found in the database."

const excerptLength = 150

// FormatResults renders hits as the markdown context block of the prompt.
func FormatResults(hits []Hit) string {
	if len(hits) == 0 {
		return NoResultsContext
	}

	blocks := make([]string, 0, len(hits))
	for _, hit := range hits {
		doc := hit.Document
		var b strings.Builder
		fmt.Fprintf(&b, "**%s**\n", orDefault(doc.Title, "Untitled"))
		switch doc.Kind {
		case document.KindWeeklyNewsItem:
			fmt.Fprintf(&b, "- *Publication*: %s\n", orDefault(doc.Publication, "N/A"))
			fmt.Fprintf(&b, "- *Author*: %s\n", orDefault(strings.Join(doc.Authors, ", "), "N/A"))
			fmt.Fprintf(&b, "- *Date*: %s\n", truncate(orDefault(doc.Date, "N/A"), 10))
			fmt.Fprintf(&b, "- *Summary*: %s...\n", truncate(firstNonEmpty(doc.Summary, doc.Content), excerptLength))
		default:
			fmt.Fprintf(&b, "- *Authors*: %s\n", orDefault(strings.Join(doc.Authors, ", "), "N/A"))
			fmt.Fprintf(&b, "- *Date*: %s\n", truncate(orDefault(doc.Date, "N/A"), 10))
			fmt.Fprintf(&b, "- *Excerpt*: %s...\n", truncate(firstNonEmpty(doc.Summary, doc.Content), excerptLength))
		}
		fmt.Fprintf(&b, "- *URL*: %s", orDefault(doc.URL, "N/A"))
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// SourceDocuments lists the citations for hits that link somewhere.
func SourceDocuments(hits []Hit) []chat.SourceDocument {
	docs := make([]chat.SourceDocument, 0, len(hits))
	for _, hit := range hits {
		if hit.Document.URL == "" {
			continue
		}
		docs = append(docs, chat.SourceDocument{Title: hit.Document.Title, URL: hit.Document.URL})
	}
	return docs
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

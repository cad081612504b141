// ABOUTME: HTML export of a transcript with markdown-rendered message bodies.
// ABOUTME: Used by the TUI /export command to save a readable copy of a session.

package transcript

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"time"

	"github.com/yuin/goldmark"
)

// ExportHTML writes the transcript as a standalone HTML document. Turn
// content is treated as markdown and converted with goldmark; labels and
// timestamps are escaped verbatim.
func (l *Log) ExportHTML(w io.Writer, title string) error {
	turns := l.All()

	if _, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n<h1>%s</h1>\n",
		html.EscapeString(title), html.EscapeString(title)); err != nil {
		return err
	}

	for _, t := range turns {
		var body bytes.Buffer
		if err := goldmark.Convert([]byte(t.Content), &body); err != nil {
			return fmt.Errorf("rendering turn content: %w", err)
		}

		label := string(t.Role)
		if t.AgentLabel != "" {
			label = fmt.Sprintf("%s (%s)", label, t.AgentLabel)
		}

		if _, err := fmt.Fprintf(w, "<div class=%q>\n<p><strong>%s</strong> <em>%s</em></p>\n",
			string(t.Role), html.EscapeString(label), t.Timestamp.Format(time.RFC3339)); err != nil {
			return err
		}
		if t.ImagePreview != "" {
			if _, err := fmt.Fprintf(w, "<img src=%q alt=\"attachment\">\n", t.ImagePreview); err != nil {
				return err
			}
		}
		if _, err := w.Write(body.Bytes()); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "</div>\n"); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, "</body>\n</html>\n")
	return err
}

// ABOUTME: Responder boundary for reply generation plus a deterministic default.
// ABOUTME: The rule-based responder lets the server run with no inference backend.

package agents

import (
	"context"
	"fmt"
	"strings"
)

// Exchange is one prior message given to the responder as context.
type Exchange struct {
	Role    string // "user" or "assistant"
	Content string
}

// Request carries everything a responder needs to produce a reply.
type Request struct {
	Selection Selection
	Message   string
	HasImage  bool
	History   []Exchange
}

// Responder generates the reply text for a routed message. Implementations
// may call out to an inference backend; the server treats this as an opaque
// boundary.
type Responder interface {
	Respond(ctx context.Context, req *Request) (string, error)
}

// RuleBased is the built-in responder. It produces deterministic specialist
// guidance from the routed selection and the keywords found in the message,
// so the server is usable without external credentials.
type RuleBased struct{}

// NewRuleBased creates the default responder.
func NewRuleBased() *RuleBased {
	return &RuleBased{}
}

// Respond builds a canned specialist reply for the selection.
func (rb *RuleBased) Respond(_ context.Context, req *Request) (string, error) {
	switch req.Selection {
	case SelectionIssue:
		return rb.issueReply(req), nil
	case SelectionTenancy:
		return rb.tenancyReply(req), nil
	default:
		return ClarificationText, nil
	}
}

func (rb *RuleBased) issueReply(req *Request) string {
	var b strings.Builder

	if req.HasImage {
		b.WriteString("Thanks for the photo. Based on your description")
	} else {
		b.WriteString("Based on your description")
	}
	if topics := matchedKeywords(req.Message, issueKeywords); len(topics) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(topics, ", "))
	}
	b.WriteString(", here is how to troubleshoot the issue:\n\n")
	b.WriteString("1. Document the problem area with photos and note when it started.\n")
	b.WriteString("2. Rule out the common causes first: water supply, drainage, sealant, and ventilation.\n")
	b.WriteString("3. If the problem involves active leaks, shut off the nearest supply valve before anything else.\n")
	b.WriteString("4. For electrical or structural symptoms, stop and bring in a licensed professional.\n\n")
	b.WriteString("If you can share a photo of the affected area I can narrow this down further.")
	return b.String()
}

func (rb *RuleBased) tenancyReply(req *Request) string {
	var b strings.Builder

	b.WriteString("Here is some general guidance on your tenancy question")
	if topics := matchedKeywords(req.Message, tenancyKeywords); len(topics) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(topics, ", "))
	}
	b.WriteString(":\n\n")
	b.WriteString("- Tenancy rules vary by jurisdiction, so let me know your city or region for specifics.\n")
	b.WriteString("- Your lease agreement is the first place to check; statutory protections apply on top of it.\n")
	b.WriteString("- Keep all notices and requests in writing with dates.\n\n")
	b.WriteString("This is general information rather than legal advice; for a complex dispute, consult a local tenancy board or lawyer.")
	return b.String()
}

// matchedKeywords returns the keywords present in the message, capped so the
// reply stays readable.
func matchedKeywords(message string, keywords []string) []string {
	lower := strings.ToLower(message)
	var out []string
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			out = append(out, kw)
			if len(out) == 4 {
				break
			}
		}
	}
	return out
}

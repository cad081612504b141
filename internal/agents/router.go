// ABOUTME: Keyword-scoring router that picks the specialist agent for a message.
// ABOUTME: Images always route to issue detection; ties ask the user to clarify.

package agents

import "strings"

// Selection identifies which specialist should handle a message.
type Selection string

const (
	SelectionIssue   Selection = "issue_detection"
	SelectionTenancy Selection = "tenancy_faq"
	SelectionClarify Selection = "clarification_needed"
)

// Display names reported to clients in the agent_used response field.
const (
	IssueAgentName   = "Issue Detection Agent"
	TenancyAgentName = "Tenancy FAQ Agent"
	RouterAgentName  = "Router"
)

// issueKeywords bias routing toward the issue detection specialist.
var issueKeywords = []string{
	"damage", "broken", "crack", "leak", "mold", "mould", "water",
	"stain", "fix", "repair", "problem", "issue", "wrong",
	"paint", "wall", "ceiling", "floor", "electrical", "plumbing",
	"fixture", "appliance", "moisture", "damp", "ventilation",
}

// tenancyKeywords bias routing toward the tenancy FAQ specialist.
var tenancyKeywords = []string{
	"lease", "rent", "tenant", "landlord", "evict", "deposit",
	"contract", "agreement", "notice", "law", "legal", "right",
	"responsibility", "terminate", "renew", "increase", "pay",
	"maintenance", "repair", "dispute", "vacate", "move out",
}

// ClarificationText is the fixed reply sent when routing is ambiguous.
const ClarificationText = `I'd be happy to help! Could you please clarify what you need assistance with?

• If you have a property issue or problem (damage, repairs, etc.), I can help identify and troubleshoot it.
• If you have questions about tenancy, rent, leases, or landlord/tenant matters, I can provide information on that.

Please provide more details so I can direct you to the right specialist!`

// Router selects a specialist for each message.
type Router struct{}

// NewRouter creates a Router.
func NewRouter() *Router {
	return &Router{}
}

// Select picks the specialist for a message. A message with an image always
// goes to issue detection. Otherwise the keyword lists are scored against
// the lowercased message; the higher score wins and a tie (including zero
// matches) asks the user to clarify.
func (r *Router) Select(message string, hasImage bool) Selection {
	if hasImage {
		return SelectionIssue
	}

	lower := strings.ToLower(message)

	issueScore := countMatches(lower, issueKeywords)
	tenancyScore := countMatches(lower, tenancyKeywords)

	switch {
	case issueScore > tenancyScore:
		return SelectionIssue
	case tenancyScore > issueScore:
		return SelectionTenancy
	default:
		return SelectionClarify
	}
}

// Name returns the display name for a selection.
func (s Selection) Name() string {
	switch s {
	case SelectionIssue:
		return IssueAgentName
	case SelectionTenancy:
		return TenancyAgentName
	default:
		return RouterAgentName
	}
}

func countMatches(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

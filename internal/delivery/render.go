package delivery

import (
	"fmt"
	"strings"

	stripmd "github.com/writeas/go-strip-markdown"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-purchase-backend/internal/domain"
)

// Rendered holds the texts produced for one purchase.
type Rendered struct {
	Chat      string // shared purchases chat
	Requester string // private note to the requester
}

var titleCaser = cases.Title(language.English)

// StatusLabel returns a human label for s, e.g. "In Progress".
func StatusLabel(s domain.Status) string {
	if !s.Valid() {
		return "Unknown"
	}
	return titleCaser.String(strings.ReplaceAll(strings.ToLower(string(s)), "_", " "))
}

// Render builds the plain-text messages for p. Markdown in the description is
// stripped since messages are sent without a parse mode.
func Render(p *domain.Purchase) Rendered {
	desc := strings.TrimSpace(stripmd.Strip(p.Description))
	if desc == "" {
		desc = "-"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Purchase #%d\n\n", p.ID)
	if p.Priority == domain.PriorityUrgent {
		fmt.Fprintf(&b, "URGENT: %s\n", desc)
	} else {
		fmt.Fprintf(&b, "%s\n", desc)
	}
	fmt.Fprintf(&b, "Requested by #%d on %s\n", p.RequesterID, p.CreatedAt.UTC().Format("02.01 at 15:04"))
	fmt.Fprintf(&b, "Status: %s", StatusLabel(p.Status))
	if p.TakenBy != nil {
		fmt.Fprintf(&b, "\nTaken by: #%d", *p.TakenBy)
	}
	if p.BoughtBy != nil {
		fmt.Fprintf(&b, "\nBought by: #%d", *p.BoughtBy)
	}
	if p.ArchivedBy != nil && p.Status.Terminal() {
		fmt.Fprintf(&b, "\nClosed by: #%d", *p.ArchivedBy)
	}

	return Rendered{
		Chat:      b.String(),
		Requester: fmt.Sprintf("Your purchase #%d is now %s.", p.ID, StatusLabel(p.Status)),
	}
}

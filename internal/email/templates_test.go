package email

import (
	"strings"
	"testing"
	"time"
)

func TestRenderLeadAssigned(t *testing.T) {
	content, subject, err := renderLeadAssigned(LeadAssignedEmail{
		LeadName: "Vikram <VIP>",
		ForEvent: "IPL Final",
		Reason:   "Matched rule: Corporate",
		LeadURL:  "https://crm.example.com/leads/1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "New lead assigned: Vikram <VIP>" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(content, "Vikram &lt;VIP&gt;") {
		t.Fatalf("lead name must be escaped in the body")
	}
	for _, want := range []string{"IPL Final", "Matched rule: Corporate", "https://crm.example.com/leads/1"} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in body", want)
		}
	}
}

func TestRenderFollowUpDue(t *testing.T) {
	content, subject, err := renderFollowUpDue(FollowUpDueEmail{DueAt: time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Follow-up due: unnamed lead" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(content, "02 May 2026 09:30 UTC") {
		t.Fatalf("expected due date in body")
	}
	if strings.Contains(content, "Open lead") {
		t.Fatalf("no call to action without a link")
	}
}

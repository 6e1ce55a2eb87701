package entity

import (
	"fmt"
	"strings"
)

// DeliveryError records why a single recipient did not receive a broadcast
type DeliveryError struct {
	RecipientID string `json:"recipient_id"`
	Reason      string `json:"reason"`
}

// DeliveryReport is the outcome of one broadcast. Total == Success + Failed.
type DeliveryReport struct {
	Total   int             `json:"total"`
	Success int             `json:"success"`
	Failed  int             `json:"failed"`
	Errors  []DeliveryError `json:"errors,omitempty"`
}

// Summary renders the report for chat, listing at most limit errors
func (r *DeliveryReport) Summary(limit int) string {
	var b strings.Builder
	b.WriteString("Announcement delivered.\n")
	fmt.Fprintf(&b, "Recipients: %d\n", r.Total)
	fmt.Fprintf(&b, "Delivered: %d\n", r.Success)
	fmt.Fprintf(&b, "Failed: %d", r.Failed)

	if len(r.Errors) > 0 && limit > 0 {
		b.WriteString("\n\nErrors:")
		for i, e := range r.Errors {
			if i == limit {
				fmt.Fprintf(&b, "\n... and %d more", len(r.Errors)-limit)
				break
			}
			fmt.Fprintf(&b, "\n%s: %s", e.RecipientID, e.Reason)
		}
	}
	return b.String()
}

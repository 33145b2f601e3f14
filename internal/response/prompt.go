package response

import (
	"fmt"
	"strings"

	"meetsched/internal/availability"
	"meetsched/internal/snapshot"
)

// Prompt renders the snapshot and the customer's message as instructions for the suggester.
func Prompt(snap *snapshot.Snapshot, customerMessage string) (string, error) {
	if err := checkSnapshot(snap); err != nil {
		return "", err
	}
	name := snap.Subject.Name
	wh := workingHours(snap)

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a helpful meeting scheduling assistant. A customer wants to schedule a meeting with %s.\n\n", name)
	fmt.Fprintf(&sb, "Customer's message: %q\n\n", customerMessage)
	fmt.Fprintf(&sb, "Here is %s's complete calendar data:\n\n", name)
	fmt.Fprintf(&sb, "CURRENT TIME: %s\n", currentTime(snap))
	fmt.Fprintf(&sb, "TIMEZONE: %s\n", wh.Timezone)
	fmt.Fprintf(&sb, "WORKING HOURS: %s - %s\n\n", wh.Start, wh.End)

	fmt.Fprintf(&sb, "BUSY SLOTS (%d total):\n", len(snap.Busy))
	lines := make([]string, 0, len(snap.Busy))
	for _, b := range snap.Busy {
		lines = append(lines, availability.FormatBusy(b))
	}
	writeNumbered(&sb, lines)

	sb.WriteString("CALENDAR EVENTS:\n")
	lines = lines[:0]
	for _, e := range snap.Events {
		lines = append(lines, e.Title+" - "+availability.FormatEvent(e))
	}
	writeNumbered(&sb, lines)

	fmt.Fprintf(&sb, "AVAILABLE TIME SLOTS (%d total):\n", len(snap.Free))
	lines = lines[:0]
	for _, s := range snap.Free {
		lines = append(lines, availability.FormatFree(s))
	}
	writeNumbered(&sb, lines)

	sb.WriteString(`Please analyze this data and provide:
1. A friendly, professional response to the customer
2. Suggest the best 3-5 meeting times based on patterns (e.g., prefer mornings if they have afternoon meetings, suggest consecutive days if possible)
3. Group suggestions by day for easier reading
4. If there are no available slots, explain when they'll next be free
5. Keep the response concise but warm and helpful

Format your response in a conversational way, as if you're speaking directly to the customer.`)
	return sb.String(), nil
}

func writeNumbered(sb *strings.Builder, lines []string) {
	if len(lines) == 0 {
		sb.WriteString("None\n\n")
		return
	}
	for i, l := range lines {
		fmt.Fprintf(sb, "%d. %s\n", i+1, l)
	}
	sb.WriteString("\n")
}

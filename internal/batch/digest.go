package batch

import (
	"strings"

	"github.com/google/uuid"

	"github.com/relaymate/chatbatch/internal/chat"
)

// DigestHeader is the fixed first line of every synthesized outbound message.
const DigestHeader = "Received messages:"

// BuildDigest renders the deterministic digest for one partition: the header
// line followed by one message id per line, in the order supplied.
func BuildDigest(ids []uuid.UUID) string {
	var b strings.Builder
	b.WriteString(DigestHeader)
	b.WriteString("\n")
	for i, id := range ids {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(id.String())
	}
	return b.String()
}

// MessageIDs extracts ids from a partition, preserving order.
func MessageIDs(messages []chat.Message) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	return ids
}

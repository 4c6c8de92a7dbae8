package providers

import "strings"

// ExtractSystemMessages splits messages into the joined system-role content
// and the remaining non-system messages in their original order. The
// Anthropic adapter calls this; the Gemini and Bedrock adapters separate
// system messages with their own inline loops.
func ExtractSystemMessages(messages []Message) (system string, rest []Message) {
	var systemParts []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			systemParts = append(systemParts, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(systemParts, "\n"), rest
}

// FixAlternation merges consecutive same-role messages into one. Several
// providers reject back-to-back user or assistant turns; this keeps the
// first role's metadata and concatenates content in wire order.
func FixAlternation(messages []Message) []Message {
	if len(messages) == 0 {
		return messages
	}
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content = out[n-1].Content + "\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return out
}

// ApplyJSONModeFallback appends an explicit JSON instruction to system for
// providers with no native json_object response mode, which otherwise
// ignore ResponseFormat and return prose instead of an error.
func ApplyJSONModeFallback(system string, req Request) string {
	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
		return system
	}
	const instruction = "Respond with a single valid JSON object and nothing else."
	if system == "" {
		return instruction
	}
	return system + "\n" + instruction
}

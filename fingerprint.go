package aigateway

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/ferro-labs/ai-gateway/providers"
)

// requestFingerprint computes the cache key for the cache-lookup/cache-store
// pipeline stages: route + method + the normalized request body + the
// authenticated subject id, so two different subjects (or two different
// routes) never collide on the same cache entry even when their model and
// messages are identical. Grounded on the response-cache plugin's simpler
// model+messages hash (internal/plugins/cache.cacheKey); this is the fuller
// fingerprint the gateway pipeline stage uses when a Cache is configured.
func requestFingerprint(route, method, subjectID string, req providers.Request) string {
	h := sha256.New()
	h.Write([]byte(route))
	h.Write([]byte{0})
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(subjectID))
	h.Write([]byte{0})
	h.Write([]byte(req.Model))
	h.Write([]byte{0})

	msgs := make([]string, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = m.Role + ":" + m.Name + ":" + m.Content
	}
	// Fixed wire order (not sorted) — unlike the plugin's exact-match key,
	// message order is part of the semantic request and must not collapse
	// two different conversations into the same fingerprint.
	h.Write([]byte(strings.Join(msgs, "\x1f")))
	h.Write([]byte{0})

	if req.Temperature != nil {
		h.Write([]byte(strconv.FormatFloat(*req.Temperature, 'f', -1, 64)))
	}
	h.Write([]byte{0})
	if req.TopP != nil {
		h.Write([]byte(strconv.FormatFloat(*req.TopP, 'f', -1, 64)))
	}
	h.Write([]byte{0})
	if req.MaxTokens != nil {
		h.Write([]byte(strconv.Itoa(*req.MaxTokens)))
	}
	h.Write([]byte{0})

	tools := make([]string, len(req.Tools))
	for i, t := range req.Tools {
		tools[i] = t.Type
	}
	sort.Strings(tools)
	h.Write([]byte(strings.Join(tools, ",")))

	return hex.EncodeToString(h.Sum(nil))
}

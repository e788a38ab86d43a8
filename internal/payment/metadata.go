package payment

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/example/ec-storefront/internal/domain/order"
)

const (
	metadataUserID      = "user_id"
	metadataItemsPrefix = "items_"
	// Stripe caps metadata values at 500 characters and keys at 50.
	metadataChunkSize = 500
	metadataMaxChunks = 45
)

var ErrCartTooLarge = apperr.Validation("cart has too many items for hosted checkout", "items")

// CartSnapshot is the cart carried through the hosted checkout so the paid
// order can be rebuilt from the webhook alone.
type CartSnapshot struct {
	UserID string
	Items  []order.Line
}

// EncodeCartMetadata spreads the JSON item list over items_0..items_n keys.
func EncodeCartMetadata(snap CartSnapshot) (map[string]string, error) {
	raw, err := json.Marshal(snap.Items)
	if err != nil {
		return nil, err
	}
	s := string(raw)

	md := make(map[string]string)
	if snap.UserID != "" {
		md[metadataUserID] = snap.UserID
	}
	for i := 0; len(s) > 0; i++ {
		if i == metadataMaxChunks {
			return nil, ErrCartTooLarge
		}
		n := chunkEnd(s, metadataChunkSize)
		md[metadataItemsPrefix+strconv.Itoa(i)] = s[:n]
		s = s[n:]
	}
	return md, nil
}

// chunkEnd is the largest cut at or below limit bytes that does not split a
// UTF-8 sequence, so every chunk stays valid UTF-8 on its own.
func chunkEnd(s string, limit int) int {
	if len(s) <= limit {
		return len(s)
	}
	n := limit
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

// DecodeCartMetadata reverses EncodeCartMetadata.
func DecodeCartMetadata(md map[string]string) (*CartSnapshot, error) {
	type chunk struct {
		idx  int
		data string
	}
	var chunks []chunk
	for k, v := range md {
		if !strings.HasPrefix(k, metadataItemsPrefix) {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimPrefix(k, metadataItemsPrefix))
		if err != nil {
			return nil, fmt.Errorf("bad metadata key %q", k)
		}
		chunks = append(chunks, chunk{idx: idx, data: v})
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("metadata has no cart items")
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].idx < chunks[j].idx })

	var b strings.Builder
	for i, c := range chunks {
		if c.idx != i {
			return nil, fmt.Errorf("metadata chunk %d missing", i)
		}
		b.WriteString(c.data)
	}

	snap := &CartSnapshot{UserID: md[metadataUserID]}
	if err := json.Unmarshal([]byte(b.String()), &snap.Items); err != nil {
		return nil, fmt.Errorf("decode cart items: %w", err)
	}
	return snap, nil
}

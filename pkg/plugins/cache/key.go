package cache

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/cecil-the-coder/convoy/pkg/types"
)

// Key derives the store key of a request: the URL, followed when the request
// has params by "_" and each param serialized as name=value, sorted by name and
// joined with "_".
func Key(req *types.Request) string {
	if len(req.Params) == 0 {
		return req.URL
	}

	names := slices.Sorted(maps.Keys(req.Params))
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+req.Params[name])
	}
	return req.URL + "_" + strings.Join(parts, "_")
}

// entry is the persisted form of a cached response
type entry struct {
	Response      *types.Response     `json:"response"`
	CacheMetadata types.CacheMetadata `json:"cacheMetadata"`
}

func encodeEntry(resp *types.Response, createdAt time.Time) (string, error) {
	data, err := json.Marshal(entry{
		Response:      resp,
		CacheMetadata: types.CacheMetadata{CreatedAt: createdAt},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return string(data), nil
}

func decodeEntry(data string) (*entry, error) {
	var e entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	if e.Response == nil {
		return nil, fmt.Errorf("failed to decode cache entry: missing response")
	}
	return &e, nil
}

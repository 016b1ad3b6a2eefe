package ledger

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jaakkos/dao-ledger/internal/domain"
)

// maxExactFloat is the largest integer a JSON number decoded as float64 holds exactly.
const maxExactFloat = 1 << 53

// requireString extracts a non-empty string from args by key.
func requireString(args map[string]any, key string) (string, error) {
	v, _ := args[key].(string)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// optionalString extracts a string from args by key, returning the fallback if not present.
func optionalString(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return fallback
}

// requireUint64 extracts an unsigned ID from args. JSON numbers are accepted up to
// 2^53; larger IDs must be passed as decimal strings.
func requireUint64(args map[string]any, key string) (uint64, error) {
	v, exists := args[key]
	if !exists || v == nil {
		return 0, fmt.Errorf("%s is required", key)
	}
	switch n := v.(type) {
	case float64:
		if n < 0 || n != math.Trunc(n) {
			return 0, fmt.Errorf("%s must be a non-negative integer, got %v", key, n)
		}
		if n > maxExactFloat {
			return 0, fmt.Errorf("%s %v is too large for a JSON number; pass it as a decimal string", key, n)
		}
		return uint64(n), nil
	case string:
		id, err := strconv.ParseUint(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be an unsigned integer, got %q", key, n)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", key, v)
	}
}

// requireActor extracts a 32-byte actor ID written as 64 hex digits.
func requireActor(args map[string]any, key string) (domain.ActorID, error) {
	raw, err := requireString(args, key)
	if err != nil {
		return domain.ActorID{}, err
	}
	id, err := domain.ParseActorID(raw)
	if err != nil {
		return domain.ActorID{}, fmt.Errorf("%s: %w", key, err)
	}
	return id, nil
}

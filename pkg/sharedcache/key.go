package sharedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/leetleague/leetleague/pkg/requestcache"
)

// KeyPrefix namespaces every shared cache key.
const KeyPrefix = "leetleague:graphql"

// CacheKey identifies a cached GraphQL response.
type CacheKey struct {
	// Operation is the GraphQL operation name, kept readable for debugging
	Operation string

	// Digest is the hex SHA-256 of the request fingerprint
	Digest string
}

// KeyFor derives the key of a request descriptor. Descriptors with the
// same fingerprint share a key regardless of variable key order.
func KeyFor(req requestcache.Request) (CacheKey, error) {
	fp, err := requestcache.Fingerprint(req)
	if err != nil {
		return CacheKey{}, fmt.Errorf("fingerprint request: %w", err)
	}
	sum := sha256.Sum256([]byte(fp))
	return CacheKey{
		Operation: requestcache.OperationName(req.Query),
		Digest:    hex.EncodeToString(sum[:]),
	}, nil
}

// String generates the Redis key.
// Format: leetleague:graphql:operation:digest
//
// Example:
//
//	leetleague:graphql:userPublicProfile:9f86d081...
func (k CacheKey) String() string {
	op := k.Operation
	if op == "" {
		op = "anonymous"
	}
	return KeyPrefix + ":" + op + ":" + k.Digest
}

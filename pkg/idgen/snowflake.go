// Package idgen issues the identifiers used across the service: snowflake ids,
// transaction numbers, employee ids, code ids and human-typeable short codes.
package idgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ShortCodeAlphabet is the character set of short codes. Input is upper-cased
// before lookup, so only upper-case letters appear here.
const ShortCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	mu   sync.Mutex
	node *snowflake.Node
)

// Init sets the snowflake node for this process. workerID must be in 0-1023.
func Init(workerID int64) error {
	n, err := snowflake.NewNode(workerID)
	if err != nil {
		return fmt.Errorf("idgen: init node %d: %w", workerID, err)
	}
	mu.Lock()
	node = n
	mu.Unlock()
	return nil
}

func defaultNode() *snowflake.Node {
	mu.Lock()
	defer mu.Unlock()
	if node == nil {
		// node 1 is always valid
		node, _ = snowflake.NewNode(1)
	}
	return node
}

// NextID returns the next snowflake id.
func NextID() snowflake.ID {
	return defaultNode().Generate()
}

// GenerateTransactionNo returns "TXN" + yyyyMMddHHmmss + the base36 snowflake,
// e.g. TXN20251219193045A1B2C3D4E5F6.
func GenerateTransactionNo() string {
	return withTimestamp("TXN")
}

// GenerateEmployeeID returns "EMP" + yyyyMMddHHmmss + the base36 snowflake.
func GenerateEmployeeID() string {
	return withTimestamp("EMP")
}

func withTimestamp(prefix string) string {
	id := NextID()
	ts := time.Now().Format("20060102150405")
	return prefix + ts + strings.ToUpper(id.Base36())
}

// GenerateCodeID returns the opaque id encoded into a QR image, "qr_" followed
// by a lower-case base36 snowflake.
func GenerateCodeID() string {
	return "qr_" + strings.ToLower(NextID().Base36())
}

// GenerateShortCode returns n random characters from ShortCodeAlphabet.
func GenerateShortCode(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("idgen: short code length must be positive, got %d", n)
	}
	max := big.NewInt(int64(len(ShortCodeAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("idgen: read random: %w", err)
		}
		b.WriteByte(ShortCodeAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

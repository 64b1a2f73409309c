package modelcfg

import (
	"crypto/sha256"

	"github.com/btcsuite/btcutil/base58"
)

// Fingerprint returns a short stable digest of model text, carried on
// publish and rollback events so downstream consumers can tell which
// content went live without shipping the full text.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return base58.Encode(sum[:])
}

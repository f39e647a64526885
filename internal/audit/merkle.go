package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// MerkleRoot folds the payload hashes of records into a single SHA-256
// root. Leaves are the decoded hashes in the given order; each level hashes
// adjacent pairs and promotes an unpaired last node unchanged. A single
// record's root is its own hash. No records yield an empty string.
func MerkleRoot(records []Record) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	level := make([][]byte, len(records))
	for i, r := range records {
		leaf, err := hex.DecodeString(r.Hash)
		if err != nil || len(leaf) != sha256.Size {
			return "", fmt.Errorf("audit: record %d has malformed hash %q", i, r.Hash)
		}
		level[i] = leaf
	}

	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			h := sha256.New()
			h.Write(level[i])
			h.Write(level[i+1])
			next = append(next, h.Sum(nil))
		}
		level = next
	}
	return hex.EncodeToString(level[0]), nil
}

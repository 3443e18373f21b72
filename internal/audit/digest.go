package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// #region digest
// Canonical returns the RFC 8785 form of rec with its digest field cleared.
func Canonical(rec Record) ([]byte, error) {
	rec.Digest = ""
	rec.EvaluatedAt = rec.EvaluatedAt.UTC()
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize record: %w", err)
	}
	return out, nil
}

// Seal returns rec with Digest set to the SHA-256 of its canonical form.
func Seal(rec Record) (Record, error) {
	rec.EvaluatedAt = rec.EvaluatedAt.UTC()
	canon, err := Canonical(rec)
	if err != nil {
		return Record{}, err
	}
	sum := sha256.Sum256(canon)
	rec.Digest = hex.EncodeToString(sum[:])
	return rec, nil
}

// Verify reports whether rec's digest matches its content.
func Verify(rec Record) (bool, error) {
	sealed, err := Seal(rec)
	if err != nil {
		return false, err
	}
	return sealed.Digest == rec.Digest, nil
}

// #endregion digest

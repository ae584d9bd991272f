// Package fingerprint provides canonical JSON encoding and content hashing
// used throughout the pipeline to decide whether a phase's inputs or outputs
// have changed since the last successful run.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
)

// Prefix is prepended to every hex digest so fingerprints are
// self-describing in the manifest and artifact records.
const Prefix = "sha256:"

// Canonicalize produces a deterministic JSON encoding of v: object keys are
// sorted, there is no insignificant whitespace, and null values together
// with empty objects and empty arrays are recursively stripped so that
// semantically-equivalent values hash identically regardless of which code
// path produced them.
func Canonicalize(v any) ([]byte, error) {
	cleaned := stripEmpty(v)
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, cleaned); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// stripEmpty recursively removes nil map/slice entries and collapses empty
// containers to nil so they are dropped by the caller's container.
func stripEmpty(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if val == nil {
				continue
			}
			cleaned := stripEmpty(val)
			if isEmptyContainer(cleaned) {
				continue
			}
			out[k] = cleaned
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, val := range t {
			if val == nil {
				continue
			}
			cleaned := stripEmpty(val)
			if isEmptyContainer(cleaned) {
				continue
			}
			out = append(out, cleaned)
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return v
	}
}

func isEmptyContainer(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

// encodeCanonical writes v to buf as JSON with sorted object keys and no
// extraneous whitespace. NaN/Inf floats are rejected.
func encodeCanonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("fingerprint: NaN/Inf is not allowed in canonical JSON")
		}
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

// ToAnyTree marshals v through encoding/json and back into the map[string]any
// / []any / float64 / string / bool tree that Canonicalize expects. Callers
// with typed structs should route through this before calling Canonicalize.
func ToAnyTree(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HashString returns the prefixed SHA-256 hex digest of s.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return Prefix + hex.EncodeToString(sum[:])
}

// HashBytes returns the prefixed SHA-256 hex digest of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return Prefix + hex.EncodeToString(sum[:])
}

// HashJSON canonicalizes v (which must already be a plain any-tree, see
// ToAnyTree) and returns the hash of the canonical encoding.
func HashJSON(v any) (string, error) {
	b, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashValue marshals v to JSON, canonicalizes it, and hashes the result.
// Use this for typed structs; it is equivalent to ToAnyTree followed by
// HashJSON.
func HashValue(v any) (string, error) {
	tree, err := ToAnyTree(v)
	if err != nil {
		return "", err
	}
	return HashJSON(tree)
}

// HashFile returns the prefixed SHA-256 hex digest of the file's bytes,
// reading in fixed-size chunks so arbitrarily large files are supported.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, 1<<20)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return Prefix + hex.EncodeToString(h.Sum(nil)), nil
}

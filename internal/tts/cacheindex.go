package tts

import (
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/reelsub/dubpipe/internal/pipeline/fingerprint"
)

// CacheIndexEntry records how one cache/<sha256>.wav entry was produced, so
// bless/debug tooling can report hit/miss statistics without re-hashing
// every cached file.
type CacheIndexEntry struct {
	Engine    string `msgpack:"engine"`
	EngineVer string `msgpack:"engine_ver"`
	Voice     string `msgpack:"voice"`
	CreatedAt int64  `msgpack:"created_at"`
	Bytes     int64  `msgpack:"bytes"`
}

// CacheIndex maps a cache key to its entry. It is additive bookkeeping,
// never relied on for correctness: a missing or corrupt index file loads as
// an empty index and is refilled only as later runs record entries; the
// cache directory is not re-hashed.
type CacheIndex map[string]CacheIndexEntry

// LoadCacheIndex reads path's msgpack-encoded index, returning an empty
// index if the file does not exist yet.
func LoadCacheIndex(path string) (CacheIndex, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return CacheIndex{}, nil
	}
	if err != nil {
		return nil, err
	}
	idx := CacheIndex{}
	if err := msgpack.Unmarshal(data, &idx); err != nil {
		return CacheIndex{}, nil
	}
	return idx, nil
}

// Save atomically writes idx to path.
func (idx CacheIndex) Save(path string) error {
	data, err := msgpack.Marshal(idx)
	if err != nil {
		return err
	}
	return fingerprint.AtomicWrite(data, path)
}

package hashtable

import (
	"fmt"
	"hash/fnv"
	"unicode/utf16"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// Hasher maps a key to an unbounded slot number. The table reduces it
// modulo its current size.
type Hasher func(key string) uint64

// Additive sums the UTF-16 code units of key. Anagrams always collide.
func Additive(key string) uint64 {
	var sum uint64
	for _, r := range key {
		if r >= 0x10000 {
			hi, lo := utf16.EncodeRune(r)
			sum += uint64(hi) + uint64(lo)
			continue
		}
		sum += uint64(r)
	}
	return sum
}

// FNV64a is FNV-1a over the key bytes.
func FNV64a(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

func Murmur3(key string) uint64 {
	return murmur3.Sum64([]byte(key))
}

func XXHash(key string) uint64 {
	return xxhash.Sum64String(key)
}

// HasherByName resolves the names accepted by the HASH_FUNC setting.
// An empty name selects Additive.
func HasherByName(name string) (Hasher, error) {
	switch name {
	case "", "additive":
		return Additive, nil
	case "fnv":
		return FNV64a, nil
	case "murmur3":
		return Murmur3, nil
	case "xxhash":
		return XXHash, nil
	default:
		return nil, fmt.Errorf("unknown hash function %q", name)
	}
}

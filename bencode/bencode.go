// Package bencode implements the canonical, deterministic dictionary
// encoding used throughout this module for hashing and signing: a
// length-prefixed encoding of a key-sorted dictionary of integers, byte
// strings, and nested dictionaries. It is bencode's dictionary subset —
// no list type is needed by any payload this module hashes.
//
// The shape mirrors the envelope convention in the teacher's
// kvstore.EncodePutPayload/DecodePutPayload pair (a fixed-field struct
// serialized through one canonical codec), but the wire encoding itself
// is this package's own deterministic dict form rather than RLP, since
// hashes and signatures in this system must match the original node's
// bencode-over-dict byte layout bit-for-bit.
package bencode

import (
	"fmt"
	"sort"
	"strconv"
)

// Value is anything a Dict entry can hold: string, []byte, int64, or Dict.
type Value interface{}

// Dict is an ordered-irrelevant string-keyed map. Marshal always emits
// keys in ascending lexicographic byte order regardless of insertion
// order, so two Dicts with the same entries always encode identically.
type Dict map[string]Value

// Marshal encodes d as a canonical bencoded dictionary.
func Marshal(d Dict) []byte {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]byte, 0, 64)
	out = append(out, 'd')
	for _, k := range keys {
		out = appendBytes(out, []byte(k))
		out = appendValue(out, d[k])
	}
	out = append(out, 'e')
	return out
}

func appendValue(out []byte, v Value) []byte {
	switch t := v.(type) {
	case nil:
		return appendBytes(out, nil)
	case string:
		return appendBytes(out, []byte(t))
	case []byte:
		return appendBytes(out, t)
	case int:
		return appendInt(out, int64(t))
	case int64:
		return appendInt(out, t)
	case uint64:
		return appendInt(out, int64(t))
	case Dict:
		return append(out, Marshal(t)...)
	default:
		panic(fmt.Sprintf("bencode: unsupported value type %T", v))
	}
}

func appendBytes(out []byte, b []byte) []byte {
	out = strconv.AppendInt(out, int64(len(b)), 10)
	out = append(out, ':')
	return append(out, b...)
}

func appendInt(out []byte, n int64) []byte {
	out = append(out, 'i')
	out = strconv.AppendInt(out, n, 10)
	return append(out, 'e')
}

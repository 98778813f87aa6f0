package cache

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// DefaultMaxSegmentLength is the longest segment kept verbatim before it is hashed.
const DefaultMaxSegmentLength = 96

// Keyer is implemented by arguments that know their own stable cache key segment,
// such as hydration queries.
type Keyer interface {
	CacheKey() string
}

type keySerializer struct {
	prefix     string
	maxSegment int
}

// KeySerializerOption configures the serializer returned by NewDefaultKeySerializer.
type KeySerializerOption func(*keySerializer)

// WithKeyPrefix prepends prefix to every key, which lets several stores share one cache.
func WithKeyPrefix(prefix string) KeySerializerOption {
	return func(s *keySerializer) {
		s.prefix = prefix
	}
}

// WithMaxSegmentLength changes the length above which a segment is replaced by its hash.
// Non-positive values disable hashing.
func WithMaxSegmentLength(n int) KeySerializerOption {
	return func(s *keySerializer) {
		s.maxSegment = n
	}
}

// NewDefaultKeySerializer returns the KeySerializer used for hydration queries.
//
// Keys have the form [prefix::]method::segment... so that every key for a method can
// be dropped with a single DeleteByPrefix. Keyer values use their CacheKey, scalars
// are formatted directly, and string slices and maps are written in a deterministic
// order. Anything else is msgpack encoded with sorted map keys and hashed.
func NewDefaultKeySerializer(opts ...KeySerializerOption) KeySerializer {
	s := &keySerializer{maxSegment: DefaultMaxSegmentLength}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MethodPrefix returns the prefix shared by every key SerializeKey builds for method.
func MethodPrefix(serializer KeySerializer, method string) string {
	if s, ok := serializer.(*keySerializer); ok && s.prefix != "" {
		return s.prefix + KeySeparator + method + KeySeparator
	}
	return method + KeySeparator
}

func (s *keySerializer) SerializeKey(method string, args ...any) string {
	parts := make([]string, 0, len(args)+2)
	if s.prefix != "" {
		parts = append(parts, s.prefix)
	}
	parts = append(parts, method)
	for _, arg := range args {
		parts = append(parts, s.segment(arg))
	}
	return strings.Join(parts, KeySeparator)
}

func (s *keySerializer) segment(v any) string {
	seg := serializeValue(v)
	if s.maxSegment > 0 && len(seg) > s.maxSegment {
		return hashSegment([]byte(seg))
	}
	return seg
}

func serializeValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case Keyer:
		return val.CacheKey()
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case []string:
		return "[" + strings.Join(val, ",") + "]"
	case map[string]string:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + "=" + val[k]
		}
		return "{" + strings.Join(pairs, ",") + "}"
	case fmt.Stringer:
		return val.String()
	default:
		return encodeValue(v)
	}
}

func encodeValue(v any) string {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%T", v)
	}
	return hashSegment(buf.Bytes())
}

func hashSegment(b []byte) string {
	return fmt.Sprintf("h:%016x", xxhash.Sum64(b))
}

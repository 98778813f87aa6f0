package cache

import (
	"strings"
	"testing"
	"time"
)

type stubQuery struct {
	ns, model string
}

func (q stubQuery) CacheKey() string {
	return "q:" + q.ns + "/" + q.model
}

func joinWithSeparator(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

func TestDefaultKeySerializer_Segments(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	tests := []struct {
		name   string
		method string
		args   []any
		want   string
	}{
		{
			name:   "no args",
			method: "FetchEntities",
			want:   "FetchEntities",
		},
		{
			name:   "scalars",
			method: "Fetch",
			args:   []any{1, "hello", true, 3.5, int64(-2), uint64(7)},
			want:   joinWithSeparator("Fetch", "1", "hello", "true", "3.5", "-2", "7"),
		},
		{
			name:   "nil",
			method: "Fetch",
			args:   []any{nil},
			want:   joinWithSeparator("Fetch", "nil"),
		},
		{
			name:   "keyer wins over other formatting",
			method: "FetchEntities",
			args:   []any{stubQuery{ns: "game", model: "Counter"}},
			want:   joinWithSeparator("FetchEntities", "q:game/Counter"),
		},
		{
			name:   "string slice keeps order",
			method: "Fetch",
			args:   []any{[]string{"b", "a"}},
			want:   joinWithSeparator("Fetch", "[b,a]"),
		},
		{
			name:   "string map is sorted",
			method: "Fetch",
			args:   []any{map[string]string{"z": "1", "a": "2"}},
			want:   joinWithSeparator("Fetch", "{a=2,z=1}"),
		},
		{
			name:   "stringer",
			method: "Fetch",
			args:   []any{1500 * time.Millisecond},
			want:   joinWithSeparator("Fetch", "1.5s"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serializer.SerializeKey(tt.method, tt.args...)
			if got != tt.want {
				t.Errorf("SerializeKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultKeySerializer_Prefix(t *testing.T) {
	serializer := NewDefaultKeySerializer(WithKeyPrefix("store-a"))

	got := serializer.SerializeKey("FetchEntities", "x")
	want := joinWithSeparator("store-a", "FetchEntities", "x")
	if got != want {
		t.Fatalf("SerializeKey() = %v, want %v", got, want)
	}

	prefix := MethodPrefix(serializer, "FetchEntities")
	if !strings.HasPrefix(got, prefix) {
		t.Fatalf("key %q does not start with method prefix %q", got, prefix)
	}
	if MethodPrefix(NewDefaultKeySerializer(), "Fetch") != "Fetch"+KeySeparator {
		t.Fatalf("unexpected method prefix without key prefix")
	}
}

func TestDefaultKeySerializer_HashesLongSegments(t *testing.T) {
	serializer := NewDefaultKeySerializer(WithMaxSegmentLength(8))

	long := strings.Repeat("x", 32)
	got := serializer.SerializeKey("Fetch", long, "short")
	parts := strings.Split(got, KeySeparator)
	if len(parts) != 3 {
		t.Fatalf("expected 3 segments, got %v", parts)
	}
	if !strings.HasPrefix(parts[1], "h:") || len(parts[1]) != len("h:")+16 {
		t.Errorf("long segment not hashed: %q", parts[1])
	}
	if parts[2] != "short" {
		t.Errorf("short segment changed: %q", parts[2])
	}
	if again := serializer.SerializeKey("Fetch", long, "short"); again != got {
		t.Errorf("hashing is not stable: %q != %q", again, got)
	}

	unlimited := NewDefaultKeySerializer(WithMaxSegmentLength(0))
	if got := unlimited.SerializeKey("Fetch", long); got != joinWithSeparator("Fetch", long) {
		t.Errorf("hashing should be disabled, got %q", got)
	}
}

func TestDefaultKeySerializer_EncodesComplexValuesDeterministically(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	type filter struct {
		Namespace string
		Limits    map[string]int
	}
	a := filter{Namespace: "game", Limits: map[string]int{"a": 1, "b": 2, "c": 3}}
	b := filter{Namespace: "game", Limits: map[string]int{"c": 3, "b": 2, "a": 1}}
	c := filter{Namespace: "game", Limits: map[string]int{"a": 9}}

	keyA := serializer.SerializeKey("Fetch", a)
	keyB := serializer.SerializeKey("Fetch", b)
	keyC := serializer.SerializeKey("Fetch", c)

	if keyA != keyB {
		t.Errorf("equal values produced different keys: %q vs %q", keyA, keyB)
	}
	if keyA == keyC {
		t.Errorf("different values produced the same key %q", keyA)
	}
	if !strings.HasPrefix(keyA, joinWithSeparator("Fetch", "h:")) {
		t.Errorf("complex value should be hashed, got %q", keyA)
	}
}

package source

import (
	"context"
	"reflect"
	"sort"
	"testing"

	"github.com/goliatone/go-optimistic-cache/store"
)

func TestToSnake(t *testing.T) {
	tests := map[string]string{
		"":            "",
		"game":        "game",
		"Counter":     "counter",
		"GameV2":      "game_v2",
		"game-v2":     "game_v2",
		"HTTPServer":  "http_server",
		"player_Name": "player_name",
		"  spaced  ":  "spaced",
		"a.b/c":       "a_b_c",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := toSnake(in); got != want {
				t.Errorf("Expected %q, got %q", want, got)
			}
		})
	}
}

func TestQuery_Tags(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"unfiltered", Query{}, []string{AllTag}},
		{"namespace", Query{Namespace: "Game"}, []string{"namespace:game"}},
		{"model", Query{Namespace: "game", Model: "Counter"}, []string{"model:game.counter"}},
		{"ids", Query{EntityIDs: []string{"e1", "e2", "e1"}}, []string{"entity:e1", "entity:e2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Tags(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestQuery_CacheKeyIgnoresIDOrder(t *testing.T) {
	a := Query{Namespace: "game", EntityIDs: []string{"b", "a"}, Limit: 5}
	b := Query{Namespace: "game", EntityIDs: []string{"a", "b"}, Limit: 5}
	c := Query{Namespace: "game", EntityIDs: []string{"a", "b"}, Limit: 6}

	if a.CacheKey() != b.CacheKey() {
		t.Errorf("Expected equal keys, got %q and %q", a.CacheKey(), b.CacheKey())
	}
	if a.CacheKey() == c.CacheKey() {
		t.Errorf("Expected limit to change the key, got %q", c.CacheKey())
	}
	if !reflect.DeepEqual(a.EntityIDs, []string{"b", "a"}) {
		t.Errorf("CacheKey must not reorder the query, got %v", a.EntityIDs)
	}
}

func TestQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{"empty", Query{}, false},
		{"model with namespace", Query{Namespace: "game", Model: "Counter", Limit: 10}, false},
		{"model without namespace", Query{Model: "Counter"}, true},
		{"negative offset", Query{Offset: -1}, true},
		{"empty id", Query{EntityIDs: []string{""}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestUpdateTags(t *testing.T) {
	tags := UpdateTags(store.Entity{ID: "e1", Models: store.Models{
		"game": store.Namespace{"Counter": store.Fields{"remaining": 1}},
	}})
	sort.Strings(tags)

	want := []string{AllTag, "entity:e1", "model:game.counter", "namespace:game"}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("Expected %v, got %v", want, tags)
	}
}

func TestWithQueryTags(t *testing.T) {
	ctx := WithQueryTags(context.Background(), "a", "b")
	ctx = WithQueryTags(ctx, "b", "", "c")
	if got := queryTagsFromContext(ctx); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Expected [a b c], got %v", got)
	}

	base := context.Background()
	if WithQueryTags(base) != base {
		t.Error("Expected no tags to return the same context")
	}
	if got := queryTagsFromContext(base); got != nil {
		t.Errorf("Expected nil tags, got %v", got)
	}
}

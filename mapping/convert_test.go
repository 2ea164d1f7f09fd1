package mapping_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jacentio/strata/mapping"
	"github.com/shopspring/decimal"
)

func TestConverter_PlainRoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry()
	c := mapping.NewConverter(reg, nil)
	m, _ := reg.Mapper("user")

	nick := "bob"
	in := &user{
		ID:      "u1",
		Name:    "Bob",
		Age:     41,
		Tags:    []string{"b", "a"},
		Joined:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Balance: decimal.RequireFromString("3.50"),
		Nick:    &nick,
	}

	so, err := c.IntoStore(ctx, m, in, mapping.NewBridge(), nil)
	if err != nil {
		t.Fatal(err)
	}

	expected := map[string]any{
		"id":      "u1",
		"name":    "Bob",
		"age":     int64(41),
		"tags":    []any{"b", "a"},
		"joined":  "2024-01-02T03:04:05Z",
		"balance": "3.5",
		"nick":    "bob",
	}
	if diff := cmp.Diff(expected, so.Map()); diff != "" {
		t.Errorf("store form mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"id", "name", "age", "tags", "joined", "balance", "nick"}, so.Keys()); diff != "" {
		t.Errorf("key order mismatch (-want +got):\n%s", diff)
	}

	out, err := c.FromStore(ctx, m, so, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := out.(*user)
	if got.Name != "Bob" || got.Age != 41 || *got.Nick != "bob" || !got.Balance.Equal(in.Balance) || !got.Joined.Equal(in.Joined) {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if diff := cmp.Diff([]string{"b", "a"}, got.Tags); diff != "" {
		t.Errorf("list order not preserved (-want +got):\n%s", diff)
	}
}

func TestConverter_NullAndEmpty(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry()
	c := mapping.NewConverter(reg, nil)
	users, _ := reg.Mapper("user")
	posts, _ := reg.Mapper("post")

	so, err := c.IntoStore(ctx, users, &user{Tags: []string{}}, mapping.NewBridge(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := so.Get("nick"); !ok || v != nil {
		t.Errorf("expected explicit null nick, got %v (present=%v)", v, ok)
	}
	if v, _ := so.Get("tags"); !cmp.Equal(v, []any{}) {
		t.Errorf("expected empty list, got %#v", v)
	}

	so, err = c.IntoStore(ctx, posts, &post{Readers: []*user{}, Editors: map[string]*user{}}, mapping.NewBridge(), &fakeSaver{})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := so.Get("readers"); !cmp.Equal(v, []any{}) {
		t.Errorf("expected empty referenced list, got %#v", v)
	}
	if v, _ := so.Get("editors"); !cmp.Equal(v, map[string]any{}) {
		t.Errorf("expected empty referenced map, got %#v", v)
	}
	for _, k := range []string{"author", "address", "stops", "labels", "flags"} {
		if v, ok := so.Get(k); !ok || v != nil {
			t.Errorf("expected explicit null %s, got %v (present=%v)", k, v, ok)
		}
	}
}

func TestConverter_ReferencedCollection(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry()
	c := mapping.NewConverter(reg, nil)
	m, _ := reg.Mapper("post")

	readers := make([]*user, 5)
	for i := range readers {
		readers[i] = &user{Name: string(rune('a' + i))}
	}
	saver := &fakeSaver{}
	bridge := mapping.NewBridge()

	so, err := c.IntoStore(ctx, m, &post{Title: "t", Readers: readers}, bridge, saver)
	if err != nil {
		t.Fatal(err)
	}

	if bridge.Len() != 1 {
		t.Fatalf("expected a single token for the collection, got %d", bridge.Len())
	}
	v, _ := so.Get("readers")
	if _, ok := mapping.IsToken(v); !ok {
		t.Fatalf("expected token before resolve, got %#v", v)
	}

	if err := bridge.Resolve(ctx, so); err != nil {
		t.Fatal(err)
	}
	v, _ = so.Get("readers")
	expected := []any{"user-1", "user-2", "user-3", "user-4", "user-5"}
	if diff := cmp.Diff(expected, v); diff != "" {
		t.Errorf("resolved ids mismatch (-want +got):\n%s", diff)
	}
	if len(saver.calls) != 1 || len(saver.calls[0]) != 5 {
		t.Errorf("expected one batch save of 5, got %v", saver.calls)
	}
	if readers[4].ID != "user-5" {
		t.Errorf("expected referenced entity to receive id, got %q", readers[4].ID)
	}
}

func TestConverter_ReferencedScalarAndMap(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry()
	c := mapping.NewConverter(reg, nil)
	m, _ := reg.Mapper("post")

	in := &post{
		Author:  &user{ID: "existing"},
		Editors: map[string]*user{"b": {}, "a": {}},
	}
	bridge := mapping.NewBridge()
	so, err := c.IntoStore(ctx, m, in, bridge, &fakeSaver{})
	if err != nil {
		t.Fatal(err)
	}
	if err := bridge.Resolve(ctx, so); err != nil {
		t.Fatal(err)
	}

	if v, _ := so.Get("author"); v != "existing" {
		t.Errorf("expected existing id to be kept, got %v", v)
	}
	editors, _ := so.Get("editors")
	if diff := cmp.Diff(map[string]any{"a": "user-1", "b": "user-2"}, editors); diff != "" {
		t.Errorf("editors mismatch (-want +got):\n%s", diff)
	}
}

func TestConverter_Embedded(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry()
	c := mapping.NewConverter(reg, nil)
	m, _ := reg.Mapper("post")

	in := &post{
		Address: &address{Street: "Main", City: "Oslo"},
		Stops:   []*address{{City: "Bergen"}, {City: "Molde"}},
	}
	so, err := c.IntoStore(ctx, m, in, mapping.NewBridge(), nil)
	if err != nil {
		t.Fatal(err)
	}

	addr, _ := so.Get("address")
	nested, ok := addr.(*mapping.StoreObject)
	if !ok {
		t.Fatalf("expected nested StoreObject, got %T", addr)
	}
	if city, _ := nested.Get("city"); city != "Oslo" {
		t.Errorf("expected Oslo, got %v", city)
	}

	out, err := c.FromStore(ctx, m, mapping.StoreObjectFromMap(so.Map()), nil)
	if err != nil {
		t.Fatal(err)
	}
	got := out.(*post)
	if got.Address.Street != "Main" || len(got.Stops) != 2 || got.Stops[1].City != "Molde" {
		t.Errorf("embedded round trip mismatch: %+v", got)
	}
}

func TestConverter_FromStoreJSONText(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry()
	c := mapping.NewConverter(reg, nil)
	m, _ := reg.Mapper("post")

	author := &user{ID: "u1", Name: "Ann"}
	reader := &user{ID: "u2", Name: "Ben"}
	loader := &fakeLoader{byID: map[string]any{"u1": author, "u2": reader}}

	so := mapping.StoreObjectFromMap(map[string]any{
		"id":      "p1",
		"title":   "hello",
		"author":  "u1",
		"readers": `["u2","u1"]`,
		"editors": []byte(`{"x":"u2"}`),
		"address": `{"street":"Main","city":"Oslo"}`,
		"labels":  `{"k":"v"}`,
		"flags":   `["b","a"]`,
	})

	out, err := c.FromStore(ctx, m, so, loader)
	if err != nil {
		t.Fatal(err)
	}
	got := out.(*post)
	if got.Author != author {
		t.Error("expected author to be loaded")
	}
	if len(got.Readers) != 2 || got.Readers[0] != reader || got.Readers[1] != author {
		t.Errorf("expected readers in stored order, got %v", got.Readers)
	}
	if got.Editors["x"] != reader {
		t.Errorf("expected editor x, got %v", got.Editors)
	}
	if got.Address.City != "Oslo" || got.Labels["k"] != "v" {
		t.Errorf("unexpected decoded values %+v", got)
	}
	if _, ok := got.Flags["a"]; !ok || len(got.Flags) != 2 {
		t.Errorf("expected flag set, got %v", got.Flags)
	}
	if loader.calls != 3 {
		t.Errorf("expected one load per referenced field, got %d", loader.calls)
	}
}

func TestConverter_Errors(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry()
	c := mapping.NewConverter(reg, nil)
	posts, _ := reg.Mapper("post")
	users, _ := reg.Mapper("user")

	t.Run("nil element in referenced list", func(t *testing.T) {
		_, err := c.IntoStore(ctx, posts, &post{Readers: []*user{nil}}, mapping.NewBridge(), &fakeSaver{})
		assertConversionError(t, err, "readers")
	})

	t.Run("referenced without saver", func(t *testing.T) {
		_, err := c.IntoStore(ctx, posts, &post{Author: &user{}}, mapping.NewBridge(), nil)
		assertConversionError(t, err, "author")
	})

	t.Run("bad stored value", func(t *testing.T) {
		so := mapping.StoreObjectFromMap(map[string]any{"age": "old"})
		_, err := c.FromStore(ctx, users, so, nil)
		assertConversionError(t, err, "age")
	})

	t.Run("bad stored JSON", func(t *testing.T) {
		so := mapping.StoreObjectFromMap(map[string]any{"tags": "[unterminated"})
		_, err := c.FromStore(ctx, users, so, nil)
		assertConversionError(t, err, "tags")
	})

	t.Run("missing type handler", func(t *testing.T) {
		bare := mapping.NewConverter(reg, mapping.NewTypeHandlers())
		_, err := bare.IntoStore(ctx, users, &user{}, mapping.NewBridge(), nil)
		if !errors.Is(err, mapping.ErrNoTypeHandler) {
			t.Errorf("expected ErrNoTypeHandler, got %v", err)
		}
		assertConversionError(t, err, "id")
	})
}

func assertConversionError(t *testing.T, err error, field string) {
	t.Helper()
	if !errors.Is(err, mapping.ErrConversion) {
		t.Fatalf("expected ErrConversion, got %v", err)
	}
	var cerr *mapping.ConversionError
	if !errors.As(err, &cerr) || cerr.Field != field {
		t.Errorf("expected field %q, got %+v", field, cerr)
	}
	if !strings.Contains(err.Error(), field) {
		t.Errorf("expected message to name %q, got %q", field, err.Error())
	}
}

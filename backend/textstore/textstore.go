package textstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/PaesslerAG/gval"
	"github.com/PaesslerAG/jsonpath"
	"github.com/google/uuid"

	"github.com/jacentio/strata/internal/shard"
	"github.com/jacentio/strata/mapping"
	"github.com/jacentio/strata/query"
	"github.com/jacentio/strata/store"
)

// language is JSONPath with the full gval operator set (&&, ||, in, =~).
var language = gval.Full(jsonpath.Language())

// Config holds configuration for the Backend.
type Config struct {
	// Dir is the root directory. Each table is a subdirectory.
	Dir string

	// NumShards is the number of files per table.
	// Default: 1
	// Max: 256
	NumShards int

	// Schemas maps table names to JSON schema documents.
	Schemas map[string]string

	// Logger receives write diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > shard.MaxShards {
		c.NumShards = shard.MaxShards
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Backend stores records as JSON documents in sharded files.
type Backend struct {
	config  Config
	schemas *schemas
	logger  *slog.Logger

	mu sync.Mutex
}

// New creates a new Backend rooted at config.Dir.
func New(config Config) (*Backend, error) {
	config.validate()
	if config.Dir == "" {
		return nil, errors.New("strata: textstore directory is required")
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, err
	}
	compiled, err := compileSchemas(config.Schemas)
	if err != nil {
		return nil, err
	}
	return &Backend{
		config:  config,
		schemas: compiled,
		logger:  config.Logger,
	}, nil
}

func (b *Backend) Name() string { return "textstore" }

func (b *Backend) Dialect() query.Dialect { return Dialect{} }

// Persist writes the document into its shard. An empty id inserts with a new
// UUID; an id with no stored document fails with store.ErrNotFound.
func (b *Backend) Persist(ctx context.Context, req store.PersistRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, _ := req.Object.Get(req.IDField)
	id, _ := raw.(string)
	insert := id == ""
	if insert {
		id = uuid.NewString()
	}

	doc, err := normalize(req.Object.Map())
	if err != nil {
		return "", err
	}
	doc[req.IDField] = id
	if err := b.schemas.validate(req.Table, doc); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.shardPath(req.Table, id)
	docs, err := readShard(path)
	if err != nil {
		return "", err
	}
	if _, ok := docs[id]; !ok && !insert {
		return "", fmt.Errorf("%w: %s %s", store.ErrNotFound, req.Table, id)
	}
	docs[id] = doc
	if err := writeShard(path, docs); err != nil {
		return "", err
	}

	b.logger.Debug("wrote document", "table", req.Table, "id", id, "insert", insert)
	if insert {
		return id, nil
	}
	return "", nil
}

// Query evaluates the rendered filter over every document of the table.
// Documents are visited in id order.
func (b *Backend) Query(ctx context.Context, req store.QueryRequest) ([]*mapping.StoreObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs, err := b.tableDocs(req.Table)
	if err != nil {
		return nil, err
	}

	matched := docs
	if !req.Expr.Empty() {
		matched, err = filter(ctx, Filter(req.Expr), docs)
		if err != nil {
			return nil, err
		}
	}
	if req.Limit > 0 && len(matched) > req.Limit {
		matched = matched[:req.Limit]
	}

	out := make([]*mapping.StoreObject, 0, len(matched))
	for _, d := range matched {
		m, ok := d.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("strata: unexpected document %T in %s", d, req.Table)
		}
		out = append(out, mapping.StoreObjectFromMap(m))
	}
	return out, nil
}

// Delete removes the document, failing with store.ErrNotFound when there is none.
func (b *Backend) Delete(ctx context.Context, req store.DeleteRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.shardPath(req.Table, req.ID)
	docs, err := readShard(path)
	if err != nil {
		return err
	}
	if _, ok := docs[req.ID]; !ok {
		return fmt.Errorf("%w: %s %s", store.ErrNotFound, req.Table, req.ID)
	}
	delete(docs, req.ID)
	return writeShard(path, docs)
}

// Filter renders the JSONPath expression that selects matching documents.
func Filter(expr *query.Expression) string {
	if expr.Empty() {
		return "$[*]"
	}
	return "$[?(" + expr.Text + ")]"
}

// filter returns the documents selected by path. Each document is evaluated
// on its own over a float view, so the returned documents keep their exact
// numbers.
func filter(ctx context.Context, path string, docs []any) ([]any, error) {
	eval, err := language.NewEvaluable(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", query.ErrInvalidCondition, err)
	}
	var matched []any
	for _, d := range docs {
		res, err := eval(ctx, []any{floatView(d)})
		if err != nil {
			return nil, err
		}
		if res == nil {
			continue
		}
		hits, ok := res.([]any)
		if !ok {
			return nil, fmt.Errorf("strata: unexpected filter result %T", res)
		}
		if len(hits) > 0 {
			matched = append(matched, d)
		}
	}
	return matched, nil
}

func (b *Backend) tableDocs(table string) ([]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	all := make(map[string]any)
	for _, name := range shard.Names(b.config.NumShards) {
		docs, err := readShard(filepath.Join(b.config.Dir, table, name+".json"))
		if err != nil {
			return nil, err
		}
		for id, d := range docs {
			all[id] = d
		}
	}

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = all[id]
	}
	return out, nil
}

func (b *Backend) shardPath(table, id string) string {
	return filepath.Join(b.config.Dir, table, shard.Of(id, b.config.NumShards)+".json")
}

func readShard(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]any), nil
	}
	if err != nil {
		return nil, err
	}
	docs := make(map[string]any)
	if err := decode(data, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return docs, nil
}

// writeShard replaces the file atomically.
func writeShard(path string, docs map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".shard-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// normalize round-trips the document through JSON so stored and queried
// values have the same shape.
func normalize(m map[string]any) (map[string]any, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	out := make(map[string]any)
	if err := decode(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// decode keeps numbers as json.Number so integers above 2^53 survive.
func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// floatView copies v with every json.Number replaced by its float64 value,
// the only numeric form the filter language compares.
func floatView(v any) any {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = floatView(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = floatView(e)
		}
		return out
	}
	return v
}

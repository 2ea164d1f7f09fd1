package sqlstore_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/jacentio/strata/backend/sqlstore"
	"github.com/jacentio/strata/mapping"
	"github.com/jacentio/strata/query"
	"github.com/jacentio/strata/store"
)

type product struct {
	ID    string
	Name  string
	Price int64
	Tags  []string
}

func newMock(t *testing.T) (*sqlstore.Backend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() {
		mock.ExpectClose()
		if err := db.Close(); err != nil {
			t.Errorf("failed to close db: %s", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %s", err)
		}
	})
	return sqlstore.New(db, sqlstore.Config{}), mock
}

// uuidArg matches a freshly generated UUID argument.
type uuidArg struct{}

func (uuidArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func TestPersist_Insert(t *testing.T) {
	b, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO "products" ("id", "name", "tags") VALUES (?, ?, ?)`).
		WithArgs(uuidArg{}, "lamp", `["a","b"]`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	so := mapping.NewStoreObject()
	so.Set("id", "")
	so.Set("name", "lamp")
	so.Set("tags", []any{"a", "b"})

	id, err := b.Persist(context.Background(), store.PersistRequest{Table: "products", IDField: "id", Object: so})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("expected UUID id, got %q", id)
	}
}

func TestPersist_Update(t *testing.T) {
	b, mock := newMock(t)

	mock.ExpectExec(`UPDATE "products" SET "name" = ?, "meta" = ? WHERE "id" = ?`).
		WithArgs("lamp", `{"color":"red"}`, "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	so := mapping.NewStoreObject()
	so.Set("id", "p1")
	so.Set("name", "lamp")
	so.Set("meta", map[string]any{"color": "red"})

	id, err := b.Persist(context.Background(), store.PersistRequest{Table: "products", IDField: "id", Object: so})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if id != "" {
		t.Errorf("expected no new id on update, got %q", id)
	}
}

func TestPersist_UpdateMissing(t *testing.T) {
	b, mock := newMock(t)

	mock.ExpectExec(`UPDATE "products" SET "id" = ? WHERE "id" = ?`).
		WithArgs("p1", "p1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	so := mapping.NewStoreObject()
	so.Set("id", "p1")

	_, err := b.Persist(context.Background(), store.PersistRequest{Table: "products", IDField: "id", Object: so})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestBacktickQuoting(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()
	b := sqlstore.New(db, sqlstore.Config{Quoting: sqlstore.Backticks})

	mock.ExpectExec("UPDATE `products` SET `name` = ? WHERE `id` = ?").
		WithArgs("lamp", "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT * FROM `products` WHERE `name` LIKE ? ESCAPE '\\\\'").
		WithArgs("la%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("p1", "lamp"))
	mock.ExpectExec("DELETE FROM `products` WHERE `id` = ?").
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	so := mapping.NewStoreObject()
	so.Set("id", "p1")
	so.Set("name", "lamp")
	if _, err := b.Persist(ctx, store.PersistRequest{Table: "products", IDField: "id", Object: so}); err != nil {
		t.Fatalf("persist: %v", err)
	}

	expr, err := query.Render(query.StartsWith("name", "la"), b.Dialect())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	records, err := b.Query(ctx, store.QueryRequest{Table: "products", IDField: "id", Expr: expr})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}

	if err := b.Delete(ctx, store.DeleteRequest{Table: "products", IDField: "id", ID: "p1"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %s", err)
	}
}

func TestPersist_DollarPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()
	b := sqlstore.New(db, sqlstore.Config{Placeholder: sqlstore.Dollar})

	mock.ExpectExec(`UPDATE "products" SET "name" = $1, "price" = $2 WHERE "id" = $3`).
		WithArgs("lamp", int64(12), "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	so := mapping.NewStoreObject()
	so.Set("id", "p1")
	so.Set("name", "lamp")
	so.Set("price", int64(12))

	if _, err := b.Persist(context.Background(), store.PersistRequest{Table: "products", IDField: "id", Object: so}); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %s", err)
	}
}

func TestQuery(t *testing.T) {
	b, mock := newMock(t)

	rows := sqlmock.NewRows([]string{"id", "name", "tags"}).
		AddRow("p1", "lamp", `["a"]`).
		AddRow("p2", "desk", nil)
	mock.ExpectQuery(`SELECT * FROM "products" WHERE "name" LIKE ? ESCAPE '\' LIMIT 5`).
		WithArgs("%a%").
		WillReturnRows(rows)

	expr, err := query.Render(query.Contains("name", "a"), b.Dialect())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	got, err := b.Query(context.Background(), store.QueryRequest{Table: "products", IDField: "id", Expr: expr, Limit: 5})
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	var records []map[string]any
	for _, so := range got {
		records = append(records, so.Map())
	}
	want := []map[string]any{
		{"id": "p1", "name": "lamp", "tags": `["a"]`},
		{"id": "p2", "name": "desk", "tags": nil},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestQuery_Error(t *testing.T) {
	b, mock := newMock(t)

	mock.ExpectQuery(`SELECT * FROM "products"`).WillReturnError(errors.New("connection reset"))

	_, err := b.Query(context.Background(), store.QueryRequest{Table: "products", IDField: "id"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name    string
		rows    int64
		wantErr error
	}{
		{"deleted", 1, nil},
		{"missing", 0, store.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, mock := newMock(t)
			mock.ExpectExec(`DELETE FROM "products" WHERE "id" = ?`).
				WithArgs("p1").
				WillReturnResult(sqlmock.NewResult(0, tt.rows))

			err := b.Delete(context.Background(), store.DeleteRequest{Table: "products", IDField: "id", ID: "p1"})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStore_RoundTrip(t *testing.T) {
	b, mock := newMock(t)

	reg := mapping.NewRegistry()
	reg.MustRegister(mapping.MustNew[product](mapping.Definition{
		Name:  "product",
		Table: "products",
		ID:    mapping.String("id", func(p *product) *string { return &p.ID }),
		Fields: []*mapping.Field{
			mapping.String("name", func(p *product) *string { return &p.Name }),
			mapping.Plain("price", mapping.KindInt64, func(p *product) *int64 { return &p.Price }),
			mapping.PlainList("tags", mapping.KindString, func(p *product) *[]string { return &p.Tags }),
		},
	}))
	s, err := store.New(b, reg, store.DefaultConfig())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer s.Close()

	mock.ExpectExec(`INSERT INTO "products" ("id", "name", "price", "tags") VALUES (?, ?, ?, ?)`).
		WithArgs(uuidArg{}, "lamp", int64(12), `["a","b"]`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	p := &product{Name: "lamp", Price: 12, Tags: []string{"a", "b"}}
	result, err := s.Save(context.Background(), p)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if result.Entries[0].Action != store.ActionInsert || p.ID == "" {
		t.Fatalf("expected insert with assigned id, got %+v", result.Entries[0])
	}

	mock.ExpectQuery(`SELECT * FROM "products" WHERE "id" = ? LIMIT 1`).
		WithArgs(p.ID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "tags"}).
			AddRow(p.ID, "lamp", int64(12), []byte(`["a","b"]`)))

	got, err := s.FindByID(context.Background(), "product", p.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("entity mismatch (-want +got):\n%s", diff)
	}
}

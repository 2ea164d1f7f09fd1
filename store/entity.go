package store

import "context"

// BeforeSaver is implemented by entities that act before conversion.
// An error fails the entity's save before any backend call.
type BeforeSaver interface {
	BeforeSave(ctx context.Context) error
}

// AfterSaver is implemented by entities that act once persisted. It runs
// exactly once per successful save, before the entry is recorded.
type AfterSaver interface {
	AfterSave(ctx context.Context, entry Entry) error
}

// AfterLoader is implemented by entities that act once read back.
type AfterLoader interface {
	AfterLoad(ctx context.Context) error
}

// BeforeDeleter is implemented by entities that act before removal.
type BeforeDeleter interface {
	BeforeDelete(ctx context.Context) error
}

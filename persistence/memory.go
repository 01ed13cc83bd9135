package persistence

import "context"

func init() {
	Register("memory", func(ctx context.Context, uri URI) (Storage, error) {
		return NewMemory(), nil
	})
}

// MemoryStorage keeps the object graph in memory only. Commit and Refresh do
// nothing, which makes it the storage of choice for tests and throwaway runs.
type MemoryStorage struct {
	*table
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{table: newTable()}
}

func (s *MemoryStorage) Refresh(ctx context.Context) error {
	return nil
}

func (s *MemoryStorage) Commit(ctx context.Context, pathOverride string) error {
	return nil
}

func (s *MemoryStorage) Close() error {
	return nil
}

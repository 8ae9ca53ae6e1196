package stackgraphs

import "context"

// Index is a one-shot IndexAll: it opens the database at dbPath, indexes
// paths with the given languages (all when empty) and closes it again.
func Index(ctx context.Context, paths []string, dbPath string, languages ...string) error {
	ix, err := NewIndexer(dbPath, WithLanguages(languages...))
	if err != nil {
		return err
	}
	defer ix.Close()
	return ix.IndexAll(ctx, paths)
}

// QueryDefinition is a one-shot Definitions against the database at dbPath.
func QueryDefinition(ctx context.Context, pos Position, dbPath string) ([]Position, error) {
	q, err := NewQuerier(dbPath)
	if err != nil {
		return nil, err
	}
	defer q.Close()
	return q.Definitions(ctx, pos)
}

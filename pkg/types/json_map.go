package types

// JSONMap is a free-form key/value document persisted as jsonb.
type JSONMap map[string]any

package ports

import (
	"context"

	"gocorr/domain/dataset"
)

// SourceMethod selects how a dataset is obtained.
type SourceMethod string

const (
	SourceFile SourceMethod = "FILE"
	SourceSQL  SourceMethod = "SQL"
)

// Source identifies a dataset to load. Query is a file path for FILE sources
// and a SQL statement for SQL sources.
type Source struct {
	Method SourceMethod `json:"method"`
	Query  string       `json:"query"`
}

// DataLoader loads a tabular dataset from a source.
type DataLoader interface {
	Load(ctx context.Context, src Source) (*dataset.Dataset, error)
}

package store

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/loregraph/internal/driver"
)

type executedQuery struct {
	Query  string
	Params map[string]interface{}
}

// MockDriver answers each query constant with a canned result.
type MockDriver struct {
	Results  map[string]neo4j.EagerResult
	Executed []executedQuery
	Written  [][]driver.Statement
	Err      error
	WriteErr error
	closed   bool
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.Executed = append(m.Executed, executedQuery{Query: query, Params: params})
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	return m.Results[query], nil
}

func (m *MockDriver) ExecuteWrite(ctx context.Context, statements []driver.Statement) error {
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Written = append(m.Written, statements)
	return nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error {
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	m.closed = true
	return nil
}

func record(keys []string, values ...interface{}) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

package domain

import "fmt"

// OperationKind identifies one of the supported schema change kinds
type OperationKind string

const (
	OpCreateCollection OperationKind = "createCollection"
	OpCreateIndex      OperationKind = "createIndex"
)

// Operation is a closed set of schema changes. Adding a new kind means
// adding a variant here and extending every type switch over it, which
// the compiler flags via the default branches in the executor.
type Operation interface {
	Kind() OperationKind
	isOperation()
}

// CreateCollection requests creation of a named collection
type CreateCollection struct {
	Collection string
	Options    map[string]interface{}
}

func (CreateCollection) Kind() OperationKind { return OpCreateCollection }
func (CreateCollection) isOperation()        {}

// IndexKey is one field of an ordered index key specification
type IndexKey struct {
	Field     string `bson:"field" json:"field"`
	Direction int    `bson:"direction" json:"direction"` // 1 ascending, -1 descending
}

// IndexOptions are the supported options for createIndex
type IndexOptions struct {
	Name          string                 `bson:"name,omitempty" json:"name,omitempty"`
	Unique        bool                   `bson:"unique,omitempty" json:"unique,omitempty"`
	PartialFilter map[string]interface{} `bson:"partial_filter,omitempty" json:"partial_filter,omitempty"`
}

// CreateIndex requests creation of an index with an ordered key spec
type CreateIndex struct {
	Collection string
	Keys       []IndexKey
	Options    IndexOptions
}

func (CreateIndex) Kind() OperationKind { return OpCreateIndex }
func (CreateIndex) isOperation()        {}

// OperationDoc is the tagged envelope used to persist and transmit an
// Operation. Only the envelope crosses serialization boundaries; code
// works with the typed variants.
type OperationDoc struct {
	Type         OperationKind          `bson:"type" json:"type"`
	Collection   string                 `bson:"collection" json:"collection"`
	Options      map[string]interface{} `bson:"options,omitempty" json:"options,omitempty"`
	Keys         []IndexKey             `bson:"keys,omitempty" json:"keys,omitempty"`
	IndexOptions *IndexOptions          `bson:"index_options,omitempty" json:"index_options,omitempty"`
}

// NewOperationDoc wraps an Operation into its envelope form
func NewOperationDoc(op Operation) OperationDoc {
	switch o := op.(type) {
	case CreateCollection:
		return OperationDoc{Type: OpCreateCollection, Collection: o.Collection, Options: o.Options}
	case CreateIndex:
		opts := o.Options
		return OperationDoc{Type: OpCreateIndex, Collection: o.Collection, Keys: o.Keys, IndexOptions: &opts}
	default:
		return OperationDoc{}
	}
}

// ToOperation unwraps the envelope back into a typed Operation
func (d OperationDoc) ToOperation() (Operation, error) {
	switch d.Type {
	case OpCreateCollection:
		return CreateCollection{Collection: d.Collection, Options: d.Options}, nil
	case OpCreateIndex:
		op := CreateIndex{Collection: d.Collection, Keys: d.Keys}
		if d.IndexOptions != nil {
			op.Options = *d.IndexOptions
		}
		return op, nil
	default:
		return nil, fmt.Errorf("unsupported operation type %q", string(d.Type))
	}
}

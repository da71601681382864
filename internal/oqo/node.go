// Package oqo implements the structured query object: a nested and/or tree
// of column filters plus row, column and sort selection. It validates query
// objects against the entity schema and compiles them to predicates.
package oqo

import (
	"bytes"
	"encoding/json"

	"github.com/fluxbase-eu/facetql/internal/queryerr"
)

// Kind tags the variant of a Node.
type Kind int

const (
	KindBranch Kind = iota
	KindLeaf
)

// Node is a query object filter node: a *Branch or a *Leaf.
type Node interface {
	Kind() Kind
}

// Join is the boolean combinator of a branch.
type Join string

const (
	JoinAnd Join = "and"
	JoinOr  Join = "or"
)

// Branch combines child filters with and/or.
type Branch struct {
	Join    Join   `json:"join"`
	Filters []Node `json:"filters"`
}

// Leaf is a single column comparison.
type Leaf struct {
	SubjectEntity string `json:"subjectEntity,omitempty"`
	ColumnID      string `json:"column_id"`
	Operator      string `json:"operator,omitempty"`
	Value         any    `json:"value"`
}

func (*Branch) Kind() Kind { return KindBranch }
func (*Leaf) Kind() Kind   { return KindLeaf }

// DefaultOperator is applied to leaves without an operator.
const DefaultOperator = "is"

// Op returns the leaf operator, defaulting to "is".
func (l *Leaf) Op() string {
	if l.Operator == "" {
		return DefaultOperator
	}
	return l.Operator
}

const (
	GetRowsSummary = "summary"
	EntityWorks    = "works"
)

// Request is a query object.
type Request struct {
	GetRows      string   `json:"get_rows,omitempty"`
	FilterWorks  []Node   `json:"filter_works,omitempty"`
	FilterAggs   []Node   `json:"filter_aggs,omitempty"`
	ShowColumns  []string `json:"show_columns,omitempty"`
	SortByColumn string   `json:"sort_by_column,omitempty"`
	SortByOrder  string   `json:"sort_by_order,omitempty"`
}

// Rows returns get_rows, defaulting to works.
func (r *Request) Rows() string {
	if r.GetRows == "" {
		return EntityWorks
	}
	return r.GetRows
}

type rawRequest struct {
	GetRows      string            `json:"get_rows"`
	FilterWorks  []json.RawMessage `json:"filter_works"`
	FilterAggs   []json.RawMessage `json:"filter_aggs"`
	ShowColumns  []string          `json:"show_columns"`
	SortByColumn string            `json:"sort_by_column"`
	SortByOrder  string            `json:"sort_by_order"`
}

// UnmarshalJSON decodes filter nodes into their variants: an object with a
// "join" key is a branch, any other object a leaf.
func (r *Request) UnmarshalJSON(data []byte) error {
	var raw rawRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return queryerr.Grammar("Invalid query object: %s", err.Error())
	}
	works, err := decodeNodes(raw.FilterWorks)
	if err != nil {
		return err
	}
	aggs, err := decodeNodes(raw.FilterAggs)
	if err != nil {
		return err
	}
	*r = Request{
		GetRows:      raw.GetRows,
		FilterWorks:  works,
		FilterAggs:   aggs,
		ShowColumns:  raw.ShowColumns,
		SortByColumn: raw.SortByColumn,
		SortByOrder:  raw.SortByOrder,
	}
	return nil
}

// Decode parses a query object document.
func Decode(data []byte) (*Request, error) {
	var req Request
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		if _, ok := queryerr.As(err); ok {
			return nil, err
		}
		return nil, queryerr.Grammar("Invalid query object: %s", err.Error())
	}
	return &req, nil
}

// DecodeNode parses one filter node.
func DecodeNode(data []byte) (Node, error) {
	return decodeNode(data)
}

func decodeNodes(raws []json.RawMessage) ([]Node, error) {
	if raws == nil {
		return nil, nil
	}
	nodes := make([]Node, 0, len(raws))
	for _, raw := range raws {
		n, err := decodeNode(raw)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func decodeNode(data []byte) (Node, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil || keys == nil {
		return nil, queryerr.Grammar("Invalid filter node: %s", string(data))
	}

	if _, isBranch := keys["join"]; isBranch {
		var raw struct {
			Join    Join              `json:"join"`
			Filters []json.RawMessage `json:"filters"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, queryerr.Grammar("Invalid filter branch: %s", string(data))
		}
		children, err := decodeNodes(raw.Filters)
		if err != nil {
			return nil, err
		}
		return &Branch{Join: raw.Join, Filters: children}, nil
	}

	leaf := &Leaf{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(leaf); err != nil {
		return nil, queryerr.Grammar("Invalid filter leaf: %s", string(data))
	}
	return leaf, nil
}

package models

import (
	"time"
)

// Active filter keys tracked per conversation.
const (
	FilterLastWhere = "last_where"
	FilterTimeRange = "time_range"
)

// QueryType classifies how a follow-up question relates to the previous one.
type QueryType string

const (
	QueryTypeFilterRefinement  QueryType = "filter_refinement"
	QueryTypeAggregationChange QueryType = "aggregation_change"
	QueryTypeColumnExpansion   QueryType = "column_expansion"
	QueryTypeSortingChange     QueryType = "sorting_change"
	QueryTypePronounReference  QueryType = "pronoun_reference"
	QueryTypeComparison        QueryType = "comparison"
	QueryTypeNewQuery          QueryType = "new_query"
)

// ValidQueryTypes contains all valid query type values.
var ValidQueryTypes = []QueryType{
	QueryTypeFilterRefinement,
	QueryTypeAggregationChange,
	QueryTypeColumnExpansion,
	QueryTypeSortingChange,
	QueryTypePronounReference,
	QueryTypeComparison,
	QueryTypeNewQuery,
}

// IsValidQueryType checks if the given type is valid.
func IsValidQueryType(t QueryType) bool {
	for _, v := range ValidQueryTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ConversationTurn is one completed exchange. Immutable once appended.
type ConversationTurn struct {
	UserMessage      string    `json:"user_message"`
	AssistantMessage string    `json:"assistant_message"`
	GeneratedSQL     string    `json:"generated_sql"`
	ResultSummary    string    `json:"result_summary"`
	Entities         []string  `json:"entities,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

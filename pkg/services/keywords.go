// Package services implements the retrieval-and-refinement core: schema
// linking, the execute/validate/repair loop, and conversation context.
package services

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Lexicon holds the keyword tables driving intent, entity, and follow-up
// classification. The defaults cover English and Chinese; a YAML file can
// replace any table without touching control flow.
type Lexicon struct {
	// Result-size cues
	TopCues []string `yaml:"top_cues"`
	AllCues []string `yaml:"all_cues"`

	// Ordering cues
	HighestCues []string `yaml:"highest_cues"`
	LowestCues  []string `yaml:"lowest_cues"`
	RecentCues  []string `yaml:"recent_cues"`

	// Null-handling cues
	NonNullCues []string `yaml:"non_null_cues"`

	// Coreference resolution
	Pronouns            []string `yaml:"pronouns"`
	ContinuationMarkers []string `yaml:"continuation_markers"`
	RelativeTimePhrases []string `yaml:"relative_time_phrases"`
	PartitiveMarkers    []string `yaml:"partitive_markers"`

	// Follow-up classification, checked in this order
	FilterRefinementCues  []string `yaml:"filter_refinement_cues"`
	AggregationChangeCues []string `yaml:"aggregation_change_cues"`
	ColumnExpansionCues   []string `yaml:"column_expansion_cues"`
	SortingChangeCues     []string `yaml:"sorting_change_cues"`
	ComparisonCues        []string `yaml:"comparison_cues"`
}

// DefaultLexicon returns the built-in bilingual keyword tables.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		TopCues: []string{"top", "first", "limit", "前", "最多"},
		AllCues: []string{"all", "every", "所有", "全部"},

		HighestCues: []string{"highest", "max", "maximum", "most", "largest", "最高", "最大", "最多"},
		LowestCues:  []string{"lowest", "min", "minimum", "least", "smallest", "最低", "最小", "最少"},
		RecentCues:  []string{"recent", "latest", "newest", "最近", "最新"},

		NonNullCues: []string{"not null", "non-null", "without empty", "非空", "不为空"},

		Pronouns: []string{"它们", "他们", "她们", "它", "这个", "那个", "it", "they", "them", "this", "that"},
		ContinuationMarkers: []string{
			"也", "还", "再", "also", "too", "as well", "and the",
		},
		RelativeTimePhrases: []string{"同期", "同比", "环比", "上次", "之前", "same period", "last time"},
		PartitiveMarkers:    []string{"其中", "这些", "那些", "of those", "of these", "among them"},

		FilterRefinementCues: []string{
			"只", "仅", "筛选", "过滤", "排除", "only", "just", "filter", "exclude", "narrow",
		},
		AggregationChangeCues: []string{
			"平均", "总共", "总和", "汇总", "数量", "count", "sum", "average", "avg", "total", "group by",
		},
		ColumnExpansionCues: []string{
			"还要", "加上", "包括", "显示", "字段", "include", "add column", "also show", "with the",
		},
		SortingChangeCues: []string{
			"排序", "顺序", "倒序", "升序", "降序", "sort", "order by", "ascending", "descending", "reverse",
		},
		ComparisonCues: []string{
			"比较", "对比", "相比", "compare", "versus", "vs", "difference between",
		},
	}
}

// LoadLexicon reads a YAML keyword file and overlays it on the defaults.
// Only tables present in the file are replaced.
func LoadLexicon(path string) (*Lexicon, error) {
	lex := DefaultLexicon()
	if path == "" {
		return lex, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword file: %w", err)
	}

	var override Lexicon
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse keyword file: %w", err)
	}

	merge := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	merge(&lex.TopCues, override.TopCues)
	merge(&lex.AllCues, override.AllCues)
	merge(&lex.HighestCues, override.HighestCues)
	merge(&lex.LowestCues, override.LowestCues)
	merge(&lex.RecentCues, override.RecentCues)
	merge(&lex.NonNullCues, override.NonNullCues)
	merge(&lex.Pronouns, override.Pronouns)
	merge(&lex.ContinuationMarkers, override.ContinuationMarkers)
	merge(&lex.RelativeTimePhrases, override.RelativeTimePhrases)
	merge(&lex.PartitiveMarkers, override.PartitiveMarkers)
	merge(&lex.FilterRefinementCues, override.FilterRefinementCues)
	merge(&lex.AggregationChangeCues, override.AggregationChangeCues)
	merge(&lex.ColumnExpansionCues, override.ColumnExpansionCues)
	merge(&lex.SortingChangeCues, override.SortingChangeCues)
	merge(&lex.ComparisonCues, override.ComparisonCues)

	return lex, nil
}

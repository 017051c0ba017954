package services

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/queryforge/queryforge-engine/pkg/models"
	sqlutil "github.com/queryforge/queryforge-engine/pkg/sql"
)

// coreferenceWindow is how many recent turns pronoun resolution looks back.
const coreferenceWindow = 3

var (
	numberPattern     = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	quotedPattern     = regexp.MustCompile(`'([^']+)'|"([^"]+)"`)
	properNamePattern = regexp.MustCompile(`\b[A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)*\b`)
	timeRangePattern  = regexp.MustCompile(`(?:最近|最后|过去|前)\s*\d+\s*(?:天|月|年|小时|分钟)|(?i:(?:last|past|previous)\s+\d+\s+(?:days?|months?|years?|hours?|minutes?))`)
	fromTablePattern  = regexp.MustCompile(`(?i)\bFROM\s+([A-Za-z_][A-Za-z0-9_.]*)`)
)

// ConversationContext tracks bounded per-connection dialogue state and
// rewrites follow-up questions into standalone ones.
type ConversationContext interface {
	// UpdateContext appends a completed turn, extracting entities and active
	// filters from it. History beyond the turn bound is evicted oldest first;
	// the referenced-entity set keeps growing until ClearContext.
	UpdateContext(connectionID, userMessage, assistantMessage, generatedSQL string, rowCount, fieldCount int)
	// ResolveCoreferences rewrites pronouns, continuations, relative-time
	// phrases, and partitive references against recent turns.
	ResolveCoreferences(connectionID, question string) string
	// AnalyzeFollowupQuery classifies how a question relates to the previous
	// turn.
	AnalyzeFollowupQuery(connectionID, question string) models.QueryType
	// ProcessIncrementalQuery rewrites a classified follow-up into a
	// standalone question carrying the prior turn's intent.
	ProcessIncrementalQuery(connectionID, question string, queryType models.QueryType) string
	// History returns a copy of the retained turns, oldest first.
	History(connectionID string) []models.ConversationTurn
	// ActiveFilters returns a copy of the tracked filter map.
	ActiveFilters(connectionID string) map[string]string
	// ReferencedEntities returns every entity mentioned across the
	// conversation, in first-mention order. Unlike turns, entities survive
	// history eviction.
	ReferencedEntities(connectionID string) []string
	// ClearContext drops all state for a connection.
	ClearContext(connectionID string)
}

type conversationState struct {
	turns     []models.ConversationTurn
	filters   map[string]string
	entities  []string
	entitySet map[string]bool
}

func (st *conversationState) addEntities(entities []string) {
	for _, e := range entities {
		if st.entitySet[e] {
			continue
		}
		st.entitySet[e] = true
		st.entities = append(st.entities, e)
	}
}

type conversationContext struct {
	lexicon  *Lexicon
	maxTurns int
	logger   *zap.Logger

	mu    sync.RWMutex
	state map[string]*conversationState
}

// NewConversationContext creates a conversation manager retaining at most
// maxTurns turns per connection.
func NewConversationContext(lexicon *Lexicon, maxTurns int, logger *zap.Logger) ConversationContext {
	return &conversationContext{
		lexicon:  lexicon,
		maxTurns: maxTurns,
		logger:   logger.Named("conversation-context"),
		state:    make(map[string]*conversationState),
	}
}

var _ ConversationContext = (*conversationContext)(nil)

func (c *conversationContext) UpdateContext(connectionID, userMessage, assistantMessage, generatedSQL string, rowCount, fieldCount int) {
	turn := models.ConversationTurn{
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
		GeneratedSQL:     generatedSQL,
		ResultSummary:    fmt.Sprintf("%d records, %d fields", rowCount, fieldCount),
		Entities:         ExtractEntities(userMessage),
		Timestamp:        time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state[connectionID]
	if st == nil {
		st = &conversationState{
			filters:   make(map[string]string),
			entitySet: make(map[string]bool),
		}
		c.state[connectionID] = st
	}

	st.addEntities(turn.Entities)
	st.turns = append(st.turns, turn)
	if len(st.turns) > c.maxTurns {
		st.turns = st.turns[len(st.turns)-c.maxTurns:]
	}

	if where, ok := sqlutil.ExtractWhereClause(generatedSQL); ok {
		st.filters[models.FilterLastWhere] = where
	}
	if timeRange := timeRangePattern.FindString(userMessage); timeRange != "" {
		st.filters[models.FilterTimeRange] = timeRange
	}
}

func (c *conversationContext) ResolveCoreferences(connectionID, question string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := c.state[connectionID]
	if st == nil || len(st.turns) == 0 {
		return question
	}

	resolved := question

	// Pronouns resolve to the most recent entity within the lookback window.
	if entity, ok := latestEntity(st.turns); ok {
		for _, pronoun := range c.lexicon.Pronouns {
			resolved = replaceReference(resolved, pronoun, entity)
		}
	}

	// A continuation marker carries the previous table and time filter along.
	if containsAny(strings.ToLower(resolved), c.lexicon.ContinuationMarkers) {
		last := st.turns[len(st.turns)-1]
		if table := referencedTable(last.GeneratedSQL); table != "" && !strings.Contains(strings.ToLower(resolved), strings.ToLower(table)) {
			resolved = resolved + " (regarding " + table + ")"
		}
		if timeRange, ok := st.filters[models.FilterTimeRange]; ok && !strings.Contains(resolved, timeRange) {
			resolved = resolved + " (" + timeRange + ")"
		}
	}

	// Relative-time phrases resolve to the tracked time range.
	if timeRange, ok := st.filters[models.FilterTimeRange]; ok {
		for _, phrase := range c.lexicon.RelativeTimePhrases {
			resolved = replaceReference(resolved, phrase, timeRange)
		}
	}

	// Partitive markers scope the question to the previous result.
	if containsAny(strings.ToLower(resolved), c.lexicon.PartitiveMarkers) {
		resolved = "Based on the previous query's results: " + resolved
	}

	if resolved != question {
		c.logger.Debug("coreferences resolved",
			zap.String("connection_id", connectionID),
			zap.String("question", question),
			zap.String("resolved", resolved))
	}
	return resolved
}

func (c *conversationContext) AnalyzeFollowupQuery(connectionID, question string) models.QueryType {
	c.mu.RLock()
	st := c.state[connectionID]
	hasHistory := st != nil && len(st.turns) > 0
	c.mu.RUnlock()

	if !hasHistory {
		return models.QueryTypeNewQuery
	}

	lower := strings.ToLower(question)
	switch {
	case containsAny(lower, c.lexicon.FilterRefinementCues):
		return models.QueryTypeFilterRefinement
	case containsAny(lower, c.lexicon.AggregationChangeCues):
		return models.QueryTypeAggregationChange
	case containsAny(lower, c.lexicon.ColumnExpansionCues):
		return models.QueryTypeColumnExpansion
	case containsAny(lower, c.lexicon.SortingChangeCues):
		return models.QueryTypeSortingChange
	case containsAnyWord(lower, c.lexicon.Pronouns):
		return models.QueryTypePronounReference
	case containsAny(lower, c.lexicon.ComparisonCues):
		return models.QueryTypeComparison
	default:
		return models.QueryTypeNewQuery
	}
}

func (c *conversationContext) ProcessIncrementalQuery(connectionID, question string, queryType models.QueryType) string {
	if queryType == models.QueryTypeNewQuery {
		return question
	}
	if queryType == models.QueryTypePronounReference {
		return c.ResolveCoreferences(connectionID, question)
	}

	c.mu.RLock()
	st := c.state[connectionID]
	var previous string
	if st != nil && len(st.turns) > 0 {
		previous = st.turns[len(st.turns)-1].UserMessage
	}
	c.mu.RUnlock()

	if previous == "" {
		return question
	}

	switch queryType {
	case models.QueryTypeFilterRefinement:
		return fmt.Sprintf("Based on the previous question %q, apply an additional filter: %s", previous, question)
	case models.QueryTypeAggregationChange:
		return fmt.Sprintf("Based on the previous question %q, change the aggregation: %s", previous, question)
	case models.QueryTypeColumnExpansion:
		return fmt.Sprintf("Based on the previous question %q, include additional fields: %s", previous, question)
	case models.QueryTypeSortingChange:
		return fmt.Sprintf("Based on the previous question %q, change the ordering: %s", previous, question)
	case models.QueryTypeComparison:
		return fmt.Sprintf("Compare with the previous question %q: %s", previous, question)
	default:
		return question
	}
}

func (c *conversationContext) History(connectionID string) []models.ConversationTurn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := c.state[connectionID]
	if st == nil {
		return nil
	}
	turns := make([]models.ConversationTurn, len(st.turns))
	copy(turns, st.turns)
	return turns
}

func (c *conversationContext) ActiveFilters(connectionID string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := c.state[connectionID]
	if st == nil {
		return nil
	}
	filters := make(map[string]string, len(st.filters))
	for k, v := range st.filters {
		filters[k] = v
	}
	return filters
}

func (c *conversationContext) ReferencedEntities(connectionID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := c.state[connectionID]
	if st == nil {
		return nil
	}
	entities := make([]string, len(st.entities))
	copy(entities, st.entities)
	return entities
}

func (c *conversationContext) ClearContext(connectionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.state, connectionID)
}

// ExtractEntities pulls candidate referents from a message: quoted strings,
// proper names, and standalone numbers, in that order of appearance class.
func ExtractEntities(message string) []string {
	var entities []string
	seen := map[string]bool{}
	add := func(value string) {
		value = strings.TrimSpace(value)
		if value == "" || seen[value] {
			return
		}
		seen[value] = true
		entities = append(entities, value)
	}

	for _, m := range quotedPattern.FindAllStringSubmatch(message, -1) {
		if m[1] != "" {
			add(m[1])
		} else {
			add(m[2])
		}
	}
	// Sentence-initial capitals are almost always imperative verbs, not names.
	for _, loc := range properNamePattern.FindAllStringIndex(message, -1) {
		if loc[0] == 0 {
			continue
		}
		add(message[loc[0]:loc[1]])
	}
	for _, m := range numberPattern.FindAllString(message, -1) {
		add(m)
	}
	return entities
}

// latestEntity walks the lookback window most recent first and returns the
// newest extracted entity.
func latestEntity(turns []models.ConversationTurn) (string, bool) {
	start := len(turns) - coreferenceWindow
	if start < 0 {
		start = 0
	}
	for i := len(turns) - 1; i >= start; i-- {
		if len(turns[i].Entities) > 0 {
			return turns[i].Entities[0], true
		}
	}
	return "", false
}

// replaceReference substitutes a referring expression. ASCII references are
// replaced on word boundaries so "it" does not match inside "itemize".
func replaceReference(text, reference, replacement string) string {
	if reference == "" || !strings.Contains(strings.ToLower(text), strings.ToLower(reference)) {
		return text
	}

	if isASCII(reference) {
		pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(reference) + `\b`)
		return pattern.ReplaceAllString(text, replacement)
	}
	return strings.ReplaceAll(text, reference, replacement)
}

// containsAnyWord matches ASCII references on word boundaries so "it" does
// not hit inside "with"; CJK references match as substrings.
func containsAnyWord(text string, refs []string) bool {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if !isASCII(ref) {
			if strings.Contains(text, ref) {
				return true
			}
			continue
		}
		pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(ref) + `\b`)
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// referencedTable extracts the first FROM target of a statement.
func referencedTable(sqlQuery string) string {
	m := fromTablePattern.FindStringSubmatch(sqlQuery)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}

// Package contentindex implements the content index (spec.md §4.8):
// a full-text store of ContentChunks, independent of the code graph,
// searchable by token intersection or regex with content-type-weighted
// relevance scoring.
package contentindex

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/surgebase/porter2"

	"github.com/codeprism-dev/codeprism/internal/ast"
)

// typeWeight assigns the relevance weight for each ContentType.Category
// (spec.md §4.8).
var typeWeight = map[string]float64{
	"Documentation": 1.0,
	"Comment":       0.8, // overridden to 0.9 for docstring-context comments below
	"Code":          0.7,
	"Configuration": 0.6,
	"PlainText":     0.4,
}

func weightFor(ct ast.ContentType) float64 {
	if ct.Category == "Comment" && ct.Sub == ast.CommentContextDocumentation {
		return 0.9
	}
	if w, ok := typeWeight[ct.Category]; ok {
		return w
	}
	return 0.4
}

// UpdateListener is notified whenever the index's content changes.
type UpdateListener func(filePath string)

// Index is the content index. All mutation goes through Update/Remove;
// all indexes are maintained incrementally so reads never scan the
// full chunk set except when explicitly required.
type Index struct {
	mu sync.RWMutex

	chunks map[string]ast.ContentChunk // chunk id -> chunk

	byToken   map[string]map[string]bool // token -> set of chunk ids
	byPattern map[string]map[string]bool // path component/ext/filename -> set of file paths
	byType    map[string]map[string]bool // content category -> set of chunk ids

	chunksByFile map[string][]string // file path -> chunk ids, for replace-on-update

	listeners []UpdateListener
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		chunks:       make(map[string]ast.ContentChunk),
		byToken:      make(map[string]map[string]bool),
		byPattern:    make(map[string]map[string]bool),
		byType:       make(map[string]map[string]bool),
		chunksByFile: make(map[string][]string),
	}
}

// OnUpdate registers a listener invoked after every Update/Remove.
func (ix *Index) OnUpdate(l UpdateListener) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.listeners = append(ix.listeners, l)
}

// Update replaces every chunk previously indexed at filePath with
// chunks (spec.md §4.8: "adding a ContentNode replaces any prior node
// at the same file_path").
func (ix *Index) Update(filePath string, chunks []ast.ContentChunk) {
	ix.mu.Lock()
	ix.removeFileLocked(filePath)
	for _, c := range chunks {
		ix.addChunkLocked(c)
	}
	listeners := append([]UpdateListener(nil), ix.listeners...)
	ix.mu.Unlock()

	for _, l := range listeners {
		l(filePath)
	}
}

// Remove deletes every chunk indexed at filePath.
func (ix *Index) Remove(filePath string) {
	ix.mu.Lock()
	ix.removeFileLocked(filePath)
	listeners := append([]UpdateListener(nil), ix.listeners...)
	ix.mu.Unlock()

	for _, l := range listeners {
		l(filePath)
	}
}

func (ix *Index) removeFileLocked(filePath string) {
	for _, id := range ix.chunksByFile[filePath] {
		ix.removeChunkLocked(id)
	}
	delete(ix.chunksByFile, filePath)
}

func (ix *Index) removeChunkLocked(id string) {
	c, ok := ix.chunks[id]
	if !ok {
		return
	}
	delete(ix.chunks, id)
	for tok := range tokensOf(c) {
		if set := ix.byToken[tok]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(ix.byToken, tok)
			}
		}
	}
	if set := ix.byType[c.ContentType.Category]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(ix.byType, c.ContentType.Category)
		}
	}
	for _, p := range patternKeys(c.FilePath) {
		if set := ix.byPattern[p]; set != nil {
			delete(set, c.FilePath)
			if len(set) == 0 {
				delete(ix.byPattern, p)
			}
		}
	}
}

func (ix *Index) addChunkLocked(c ast.ContentChunk) {
	if c.Tokens == nil {
		c.Tokens = tokensOf(c)
	}
	ix.chunks[c.ChunkID] = c
	ix.chunksByFile[c.FilePath] = append(ix.chunksByFile[c.FilePath], c.ChunkID)

	for tok := range c.Tokens {
		if ix.byToken[tok] == nil {
			ix.byToken[tok] = make(map[string]bool)
		}
		ix.byToken[tok][c.ChunkID] = true
	}
	if ix.byType[c.ContentType.Category] == nil {
		ix.byType[c.ContentType.Category] = make(map[string]bool)
	}
	ix.byType[c.ContentType.Category][c.ChunkID] = true

	for _, p := range patternKeys(c.FilePath) {
		if ix.byPattern[p] == nil {
			ix.byPattern[p] = make(map[string]bool)
		}
		ix.byPattern[p][c.FilePath] = true
	}
}

// patternKeys returns filename, extension, and each path component, so
// a file-pattern index lookup can match on any of them (spec.md §4.8).
func patternKeys(filePath string) []string {
	parts := strings.Split(filePath, "/")
	keys := append([]string(nil), parts...)
	if len(parts) > 0 {
		name := parts[len(parts)-1]
		keys = append(keys, name)
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			keys = append(keys, name[idx:])
		}
	}
	return keys
}

// tokenize splits s into lowercase word tokens, both literal and
// porter2-stemmed, so stemmed and literal queries both index (spec.md
// §4.8 tokenization plus SPEC_FULL.md's stemming enrichment).
var tokenBoundary = regexp.MustCompile(`[^\p{L}\p{N}]+`)

func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, word := range tokenBoundary.Split(strings.ToLower(s), -1) {
		if word == "" {
			continue
		}
		out[word] = struct{}{}
		if stem := porter2.Stem(word); stem != "" {
			out[stem] = struct{}{}
		}
	}
	return out
}

func tokensOf(c ast.ContentChunk) map[string]struct{} {
	return tokenize(string(c.Content))
}

// NewChunkID derives a stable chunk identifier from its file path and
// byte offset within that file, via xxhash so identical content at the
// same location always gets the same id across re-indexing runs.
func NewChunkID(filePath string, offset int) string {
	h := xxhash.New()
	fmt.Fprintf(h, "%s\x00%d", filePath, offset)
	return fmt.Sprintf("%016x", h.Sum64())
}

// Query is the search_content parameter shape (spec.md §4.8).
type Query struct {
	Text               string
	Regex              bool
	CaseSensitive      bool
	AllowedTypes       []string // ContentType.Category values; empty means all
	IncludePatterns    []string // regex against file path
	ExcludePatterns    []string
	MaxResults         int
	IncludeContext     bool
	ContextLineCount   int
}

// Match is one location within a chunk where the query matched.
type Match struct {
	ChunkID    string
	FilePath   string
	Line       int
	Column     int
	Excerpt    string
	Before     []string
	After      []string
	Score      float64
}

const defaultMaxResults = 50

// Search executes q against the index (spec.md §4.8's algorithm).
func (ix *Index) Search(q Query) ([]Match, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	include, err := compileAll(q.IncludePatterns)
	if err != nil {
		return nil, err
	}
	exclude, err := compileAll(q.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	allowed := toSet(q.AllowedTypes)

	var candidates []ast.ContentChunk
	if q.Regex {
		for _, c := range ix.chunks {
			candidates = append(candidates, c)
		}
	} else {
		candidates = ix.tokenIntersectionCandidatesLocked(q.Text, q.CaseSensitive)
	}

	var re *regexp.Regexp
	if q.Regex {
		pattern := q.Text
		if !q.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err = regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
	} else {
		// Query words may be separated by any non-word run in the
		// content, matching tokenize's boundaries, so a chunk chosen by
		// token intersection ("run server") has a position to report
		// ("run_server").
		var words []string
		for _, w := range tokenBoundary.Split(q.Text, -1) {
			if w != "" {
				words = append(words, regexp.QuoteMeta(w))
			}
		}
		if len(words) > 0 {
			pattern := strings.Join(words, `[^\p{L}\p{N}]+`)
			if !q.CaseSensitive {
				pattern = "(?i)" + pattern
			}
			re = regexp.MustCompile(pattern)
		}
	}

	var matches []Match
	for _, c := range candidates {
		if len(allowed) > 0 && !allowed[c.ContentType.Category] {
			continue
		}
		if len(include) > 0 && !anyMatch(include, c.FilePath) {
			continue
		}
		if anyMatch(exclude, c.FilePath) {
			continue
		}
		matches = append(matches, findMatchesInChunk(c, q, re)...)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].FilePath < matches[j].FilePath
	})
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches, nil
}

func (ix *Index) tokenIntersectionCandidatesLocked(queryText string, caseSensitive bool) []ast.ContentChunk {
	text := queryText
	if !caseSensitive {
		text = strings.ToLower(text)
	}
	var tokens []string
	for tok := range tokenize(text) {
		tokens = append(tokens, tok)
	}
	if len(tokens) == 0 {
		return nil
	}

	var sets []map[string]bool
	for _, t := range tokens {
		set, ok := ix.byToken[t]
		if !ok {
			return nil // a required token is absent anywhere: no chunk can satisfy intersection
		}
		sets = append(sets, set)
	}
	sort.Slice(sets, func(i, j int) bool { return len(sets[i]) < len(sets[j]) })

	var out []ast.ContentChunk
	for id := range sets[0] {
		inAll := true
		for _, s := range sets[1:] {
			if !s[id] {
				inAll = false
				break
			}
		}
		if inAll {
			if c, ok := ix.chunks[id]; ok {
				out = append(out, c)
			}
		}
	}
	return out
}

func findMatchesInChunk(c ast.ContentChunk, q Query, re *regexp.Regexp) []Match {
	lines := strings.Split(string(c.Content), "\n")
	weight := weightFor(c.ContentType)

	var matches []Match
	count := 0
	for lineIdx, line := range lines {
		var cols []int
		if re != nil {
			for _, loc := range re.FindAllStringIndex(line, -1) {
				cols = append(cols, loc[0])
			}
		} else {
			haystack, needle := line, q.Text
			if !q.CaseSensitive {
				haystack, needle = strings.ToLower(haystack), strings.ToLower(needle)
			}
			start := 0
			for {
				idx := strings.Index(haystack[start:], needle)
				if idx < 0 || needle == "" {
					break
				}
				cols = append(cols, start+idx)
				start += idx + len(needle)
			}
		}
		for _, col := range cols {
			count++
			m := Match{
				ChunkID:  c.ChunkID,
				FilePath: c.FilePath,
				Line:     lineIdx + 1,
				Column:   col + 1,
				Excerpt:  line,
			}
			if q.IncludeContext {
				ctx := q.ContextLineCount
				if ctx <= 0 {
					ctx = 2
				}
				m.Before = contextSlice(lines, lineIdx-ctx, lineIdx)
				m.After = contextSlice(lines, lineIdx+1, lineIdx+1+ctx)
			}
			matches = append(matches, m)
		}
	}

	score := clamp01(float64(count) * weight)
	for i := range matches {
		matches[i].Score = score
	}
	return matches
}

func contextSlice(lines []string, from, to int) []string {
	if from < 0 {
		from = 0
	}
	if to > len(lines) {
		to = len(lines)
	}
	if from >= to {
		return nil
	}
	return append([]string(nil), lines[from:to]...)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("contentindex: invalid pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func anyMatch(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func toSet(ss []string) map[string]bool {
	if len(ss) == 0 {
		return nil
	}
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

// FindFiles returns file paths whose name, extension, or any path
// component matches pattern (spec.md §4.8 file-pattern index; backs
// the find_files tool).
func (ix *Index) FindFiles(pattern string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	set, ok := ix.byPattern[pattern]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ChunkCount returns the number of chunks currently indexed.
func (ix *Index) ChunkCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Stats is the content_stats tool's result shape (SPEC_FULL.md §5).
type Stats struct {
	TotalChunks   int
	TotalFiles    int
	ChunksByType  map[string]int
	DistinctToken int
}

// ContentStats computes aggregate statistics over the index.
func (ix *Index) ContentStats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	s := Stats{
		TotalChunks:   len(ix.chunks),
		TotalFiles:    len(ix.chunksByFile),
		ChunksByType:  make(map[string]int),
		DistinctToken: len(ix.byToken),
	}
	for cat, set := range ix.byType {
		s.ChunksByType[cat] = len(set)
	}
	return s
}

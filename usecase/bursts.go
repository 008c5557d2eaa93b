package usecase

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/LHYEjoo/POC-JASON-IMG/domain/repositories"
)

const maxBursts = 3

var (
	whitespaceRe      = regexp.MustCompile(`\s+`)
	sentenceSplitRe   = regexp.MustCompile(`[.?!]+(\s+|$)`)
	onlyPunctuationRe = regexp.MustCompile(`^[.?!\s]+$`)
	commaSplitRe      = regexp.MustCompile(`,\s+`)
	midPeriodRe       = regexp.MustCompile(`\.(\s+)`)
	trailingPeriodsRe = regexp.MustCompile(`\.+$`)
)

// RemoveTrailingPeriods strips sentence-ending periods so bursts read like
// chat messages. Question and exclamation marks stay.
func RemoveTrailingPeriods(text string) string {
	text = midPeriodRe.ReplaceAllString(text, "$1")
	text = trailingPeriodsRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// SplitIntoBursts breaks an answer into at most three chat-sized messages.
// Sentence boundaries win; a single long sentence falls back to comma splits
// and then to near-equal length chunks.
func SplitIntoBursts(text string) []string {
	normalized := strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	if normalized == "" {
		return nil
	}

	var sentences []string
	for _, s := range sentenceSplitRe.Split(normalized, -1) {
		s = strings.TrimSpace(s)
		if s != "" && !onlyPunctuationRe.MatchString(s) {
			sentences = append(sentences, s)
		}
	}

	if len(sentences) == 1 {
		single := sentences[0]
		if len([]rune(single)) > 100 {
			var commaSplit []string
			for _, part := range commaSplitRe.Split(single, -1) {
				if part = strings.TrimSpace(part); part != "" {
					commaSplit = append(commaSplit, part)
				}
			}
			if len(commaSplit) > 1 {
				sentences = commaSplit
			} else if lengthSplit := splitByLength(single, maxBursts); len(lengthSplit) > 1 {
				sentences = lengthSplit
			}
		}
	}

	cleaned := make([]string, 0, len(sentences))
	for _, s := range sentences {
		cleaned = append(cleaned, RemoveTrailingPeriods(s))
	}

	if len(cleaned) <= maxBursts {
		return cleaned
	}

	// Too many sentences: first bursts get one each, the rest pile into the
	// last one.
	groups := make([][]string, maxBursts)
	for i, s := range cleaned {
		gi := i
		if gi > maxBursts-1 {
			gi = maxBursts - 1
		}
		groups[gi] = append(groups[gi], s)
	}
	var result []string
	for _, g := range groups {
		if joined := strings.Join(g, " "); joined != "" {
			result = append(result, joined)
		}
	}
	return result
}

// splitByLength cuts text into n near-equal rune chunks. Mid-word cuts are
// accepted, matching the chat rendering this feeds.
func splitByLength(text string, n int) []string {
	runes := []rune(text)
	chunkSize := (len(runes) + n - 1) / n
	if chunkSize == 0 {
		return nil
	}
	var chunks []string
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if chunk := strings.TrimSpace(string(runes[i:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// FormatGroupedCitations renders the source footer. Chunks from the same
// document collapse into one line, ordered by each document's best rank.
func FormatGroupedCitations(sources []repositories.Source, chunks []repositories.Chunk) string {
	if len(chunks) == 0 {
		return "Bronnen: geen resultaten."
	}

	type docGroup struct {
		title    string
		ranks    []int
		bestRank int
	}
	byDoc := make(map[string]*docGroup)
	var order []string

	for idx, c := range chunks {
		if c.DocumentID == "" {
			continue
		}
		rank := idx + 1
		group, ok := byDoc[c.DocumentID]
		if !ok {
			title := c.DocumentID
			for _, s := range sources {
				if s.DocumentID == c.DocumentID {
					if s.Title != "" {
						title = s.Title
					} else if s.SourceID != "" {
						title = s.SourceID
					}
					break
				}
			}
			byDoc[c.DocumentID] = &docGroup{title: title, ranks: []int{rank}, bestRank: rank}
			order = append(order, c.DocumentID)
			continue
		}
		group.ranks = append(group.ranks, rank)
		if rank < group.bestRank {
			group.bestRank = rank
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return byDoc[order[i]].bestRank < byDoc[order[j]].bestRank
	})

	var lines []string
	for i, docID := range order {
		g := byDoc[docID]
		sort.Ints(g.ranks)
		rankStrs := make([]string, len(g.ranks))
		for j, r := range g.ranks {
			rankStrs[j] = fmt.Sprintf("%d", r)
		}
		lines = append(lines, fmt.Sprintf("Bron %d: %s — chunks: %s", i+1, g.title, strings.Join(rankStrs, ", ")))
	}
	return "Bronnen :\n" + strings.Join(lines, "\n")
}

// TypingDelay simulates a human typing the message when audio is off.
// Base 800ms plus roughly 200ms per ten characters, capped.
func TypingDelay(text string, limit time.Duration) time.Duration {
	d := 800*time.Millisecond + time.Duration(len(text)/10)*200*time.Millisecond
	if d > limit {
		return limit
	}
	return d
}

// GapDelay spaces consecutive silent bursts, scaled by the next burst's length
func GapDelay(nextText string) time.Duration {
	return time.Second + time.Duration(len(nextText)/10)*100*time.Millisecond
}

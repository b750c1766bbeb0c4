package domain

import (
	"sort"
	"strings"
)

// BookmarkCandidate is a bookmark together with its match score.
type BookmarkCandidate struct {
	Bookmark Bookmark `json:"bookmark"`
	Score    float64  `json:"score"`
}

// ScoreBookmark scores a bookmark against a free-text query.
// Title and reference are scored independently and the best one wins.
func ScoreBookmark(queryStr string, bookmark Bookmark) float64 {
	query := normalizeText(queryStr)
	if query == "" {
		return 0.0
	}

	title := scoreField(query, normalizeText(bookmark.Title))
	ref := scoreField(query, normalizeText(bookmark.Reference)) * ScoreReferenceWeight

	if ref > title {
		return ref
	}
	return title
}

func scoreField(query, field string) float64 {
	if field == "" {
		return 0.0
	}

	// Exact match (highest score)
	if query == field {
		return ScoreExactMatch + ScoreExactFieldBonus
	}

	// Prefix match
	if strings.HasPrefix(field, query) {
		return ScorePrefixMatch
	}

	// Substring match
	if index := strings.Index(field, query); index >= 0 {
		// Earlier substring matches get higher score
		substringBonus := ScorePositionBonus * (1.0 - float64(index)/float64(len(field)))
		return ScoreSubstringMatch + substringBonus
	}

	// Word-based match: every query word appears somewhere in the field
	queryWords := strings.Fields(query)
	if len(queryWords) > 1 {
		allMatch := true
		for _, word := range queryWords {
			if !strings.Contains(field, word) {
				allMatch = false
				break
			}
		}
		if allMatch {
			return ScoreFuzzyMatch
		}
	}

	// Character similarity, only for queries long enough to mean something
	if len([]rune(query)) >= 3 {
		if similarity := calculateSimilarity(query, field); similarity > 0.75 {
			return ScoreFuzzyMatch * similarity
		}
	}

	return 0.0
}

// RankBookmarkCandidates returns the matching bookmarks, best first.
// Ties keep the input (insertion) order.
func RankBookmarkCandidates(queryStr string, bookmarks []Bookmark) []BookmarkCandidate {
	candidates := make([]BookmarkCandidate, 0, len(bookmarks))

	for _, bookmark := range bookmarks {
		score := ScoreBookmark(queryStr, bookmark)

		// Skip bookmarks with zero score (no match)
		if score == 0.0 {
			continue
		}

		candidates = append(candidates, BookmarkCandidate{
			Bookmark: bookmark,
			Score:    score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	return candidates
}

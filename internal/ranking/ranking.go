package ranking

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/oshokin/trackgrab/internal/normalize"
)

// Query is the reference (artists, title, duration) the candidates are
// scored against.
type Query struct {
	Artists    string
	Title      string
	DurationMs *int64
}

// RawCandidate is one unranked extractor search result.
type RawCandidate struct {
	ID          string
	Title       string
	Channel     string
	DurationSec *int64
}

// Components breaks a candidate's total score down by family.
type Components struct {
	Artist   float64
	Title    float64
	Extended float64
	Duration float64
}

// Detail is one applied scoring rule, intended for verbatim UI display.
type Detail struct {
	Key    string
	Value  string
	Family string
	Note   string
}

// Ranked is a RawCandidate plus its computed score, in the order Rank
// returned them (descending by score; ties preserve input order).
type Ranked struct {
	RawCandidate
	Score      float64
	Components Components
	Details    []Detail
}

// channelSuffixPattern strips well-known channel branding suffixes before an
// artist token is compared against the channel name.
var channelSuffixPattern = regexp.MustCompile(
	`(?i)\s*-?\s*(topic|official|vevo|audio|music)\s*$`,
)

var (
	extendedKeywords = []string{"extended", "club", "original mix"}

	punctuationPattern = regexp.MustCompile(`[^\p{L}\p{N}&\s]`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
	artistSplitPattern = regexp.MustCompile(`\s*[,/×]\s*`)
)

// Rank scores every candidate against query and returns them sorted
// descending by score; candidates with equal scores preserve their input
// order (a stable sort).
func Rank(cfg Config, query Query, candidates []RawCandidate) []Ranked {
	ranked := make([]Ranked, len(candidates))

	referenceTitle := normalize.Normalize(query.Artists, query.Title)
	artistTokens := splitArtistTokens(query.Artists)

	for i, candidate := range candidates {
		ranked[i] = scoreCandidate(cfg, query, referenceTitle, artistTokens, candidate)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}

func scoreCandidate(
	cfg Config,
	query Query,
	referenceTitle normalize.Result,
	artistTokens []string,
	candidate RawCandidate,
) Ranked {
	var details []Detail

	workingTitle := cleanString(candidate.Title)
	channel := channelSuffixPattern.ReplaceAllString(cleanString(candidate.Channel), "")

	artistScore, workingTitle, details := scoreArtists(cfg, artistTokens, workingTitle, channel, details)
	titleScore, workingTitle, details := scoreTitle(cfg, referenceTitle, workingTitle, details)

	extendedScore, details := scoreExtended(cfg, workingTitle, artistScore, titleScore, details)
	durationScore, details := scoreDuration(cfg, query.DurationMs, candidate.DurationSec, details)

	return Ranked{
		RawCandidate: candidate,
		Score:        artistScore + titleScore + extendedScore + durationScore,
		Components: Components{
			Artist:   artistScore,
			Title:    titleScore,
			Extended: extendedScore,
			Duration: durationScore,
		},
		Details: details,
	}
}

func scoreArtists(
	cfg Config,
	artistTokens []string,
	workingTitle, channel string,
	details []Detail,
) (float64, string, []Detail) {
	var score float64

	for _, token := range artistTokens {
		if token == "" {
			continue
		}

		switch {
		case strings.Contains(workingTitle, token):
			score += cfg.ArtistBonusPerMatch
			workingTitle = removeSubstring(workingTitle, token)
			details = append(details, Detail{Key: "artist.match", Value: token, Family: "artist"})
		case strings.Contains(channel, token):
			score += cfg.ArtistBonusPerMatch
			details = append(details, Detail{Key: "artist.match", Value: token, Family: "artist", Note: "channel"})
		default:
			score -= cfg.ArtistPenaltyPerMiss
			details = append(details, Detail{Key: "artist.miss", Value: token, Family: "artist"})
		}
	}

	return score, workingTitle, details
}

func scoreTitle(
	cfg Config,
	reference normalize.Result,
	workingTitle string,
	details []Detail,
) (float64, string, []Detail) {
	var score float64

	if strings.TrimSpace(workingTitle) == reference.CleanTitle {
		score += cfg.TitleExactMatchBonus
		details = append(details, Detail{Key: "title.exact", Value: reference.CleanTitle, Family: "title"})

		return score, "", details
	}

	for _, token := range reference.Tokenize() {
		if token == "" {
			continue
		}

		if strings.Contains(workingTitle, token) {
			score += cfg.TitleTokenBonusPerMatch
			workingTitle = removeSubstring(workingTitle, token)
			details = append(details, Detail{Key: "title.match", Value: token, Family: "title"})
		} else {
			score -= cfg.TitleTokenPenaltyPerMiss
			details = append(details, Detail{Key: "title.miss", Value: token, Family: "title"})
		}
	}

	remainingPenalty, details := scoreRemainingTokens(cfg, workingTitle, details)
	score += remainingPenalty

	return score, workingTitle, details
}

func scoreRemainingTokens(cfg Config, workingTitle string, details []Detail) (float64, []Detail) {
	remainder := workingTitle
	for _, keyword := range extendedKeywords {
		remainder = strings.ReplaceAll(remainder, keyword, "")
	}

	tokens := strings.Fields(remainder)
	if len(tokens) == 0 {
		return 0, details
	}

	penalty := -float64(len(tokens)) * cfg.TitleRemainingTokenPenalty
	if penalty < cfg.TitleRemainingTokenPenaltyMax {
		penalty = cfg.TitleRemainingTokenPenaltyMax
	}

	details = append(details, Detail{
		Key:    "title.remaining",
		Value:  strings.Join(tokens, " "),
		Family: "title",
	})

	return penalty, details
}

func scoreExtended(
	cfg Config,
	workingTitle string,
	artistScore, titleScore float64,
	details []Detail,
) (float64, []Detail) {
	detected := false

	for _, keyword := range extendedKeywords {
		if strings.Contains(workingTitle, keyword) {
			detected = true

			break
		}
	}

	if !detected {
		return 0, details
	}

	remainingPenalty, _ := scoreRemainingTokens(cfg, workingTitle, nil)

	if math.Abs(remainingPenalty) > cfg.ExtendedMaxRemainingPenaltyAllowed ||
		artistScore < cfg.ExtendedMinArtistScore ||
		titleScore < cfg.ExtendedMinTitleScore {
		return 0, details
	}

	details = append(details, Detail{Key: "extended.bonus", Value: workingTitle, Family: "extended"})

	return cfg.ExtendedLargeBonus, details
}

func scoreDuration(cfg Config, referenceMs, candidateSec *int64, details []Detail) (float64, []Detail) {
	if referenceMs == nil || candidateSec == nil {
		return 0, details
	}

	referenceSec := float64(*referenceMs) / 1000
	if referenceSec <= 0 {
		return 0, details
	}

	delta := float64(*candidateSec) - referenceSec

	switch {
	case delta < 0:
		details = append(details, Detail{Key: "duration.too-short", Value: formatDelta(delta), Family: "duration"})

		return cfg.DurationPenaltyTooShort, details
	case delta == 0:
		details = append(details, Detail{Key: "duration.exact", Value: "0", Family: "duration"})

		return 0, details
	}

	ratio := float64(*candidateSec) / referenceSec
	if ratio > cfg.DurationMaxRatio {
		details = append(details, Detail{Key: "duration.beyond-ratio", Value: formatDelta(delta), Family: "duration"})

		return 0, details
	}

	fraction := (ratio - 1) / (cfg.DurationMaxRatio - 1)
	bonus := cfg.DurationBonusMin + fraction*(cfg.DurationBonusMax-cfg.DurationBonusMin)

	details = append(details, Detail{Key: "duration.bonus", Value: formatDelta(delta), Family: "duration"})

	return bonus, details
}

// splitArtistTokens splits a raw artist string into the tokens the artist
// family scores independently. Ampersand-joined duo names (e.g. "Block &
// Crown") are kept as a single token — only "," "/" and "×" separate
// distinct artists.
func splitArtistTokens(artists string) []string {
	cleaned := cleanString(artists)
	if cleaned == "" {
		return nil
	}

	parts := artistSplitPattern.Split(cleaned, -1)

	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			tokens = append(tokens, part)
		}
	}

	return tokens
}

func cleanString(s string) string {
	s = strings.ToLower(s)
	s = punctuationPattern.ReplaceAllString(s, " ")
	s = whitespacePattern.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// removeSubstring deletes the first occurrence of substr from s and
// collapses the whitespace left behind.
func removeSubstring(s, substr string) string {
	idx := strings.Index(s, substr)
	if idx < 0 {
		return s
	}

	result := s[:idx] + s[idx+len(substr):]
	result = whitespacePattern.ReplaceAllString(result, " ")

	return strings.TrimSpace(result)
}

func formatDelta(delta float64) string {
	return strconv.FormatFloat(delta, 'f', -1, 64)
}

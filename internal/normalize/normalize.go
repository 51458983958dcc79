package normalize

import (
	"regexp"
	"strings"
)

// Flags captures boolean markers detected in a track's raw title.
type Flags struct {
	// IsRemixOrEdit is true when the title mentions a remix or edit.
	IsRemixOrEdit bool
	// IsLive is true when the title mentions a live performance.
	IsLive bool
	// IsRemaster is true when the title mentions a remaster.
	IsRemaster bool
}

// Result is the output of Normalize: canonical artist/title strings plus
// the flags and token stream the ranking engine consumes.
type Result struct {
	// CleanArtists is the lowercased, punctuation-stripped artist string.
	CleanArtists string
	// CleanTitle is the lowercased, punctuation-stripped, feature-marker-free title.
	CleanTitle string
	// PrimaryArtist is the first artist of the raw artist string once split on
	// separators, cleaned the same way as CleanArtists.
	PrimaryArtist string
	// Flags holds the boolean markers detected in the raw title.
	Flags Flags
	// tokens caches the lazily computed whitespace tokenization of CleanTitle.
	tokens []string
}

var (
	// featureMarkerPattern matches "feat.", "ft.", "featuring" plus whatever follows
	// up to the next separator, so it can be stripped from the title and folded
	// into the artist string.
	featureMarkerPattern = regexp.MustCompile(`(?i)\s*[\(\[]?\s*(?:feat\.?|ft\.?|featuring)\s+([^)\]]+)[\)\]]?`)

	// punctuationPattern strips punctuation other than the ampersand, which is
	// preserved so multi-artist collaborations written with "&" survive normalization.
	punctuationPattern = regexp.MustCompile(`[^\p{L}\p{N}&\s]`)

	// multiArtistSeparatorPattern splits a raw artist string on the usual
	// collaboration separators.
	multiArtistSeparatorPattern = regexp.MustCompile(`\s*[,&×/]\s*`)

	// whitespacePattern collapses runs of whitespace into a single space.
	whitespacePattern = regexp.MustCompile(`\s+`)

	remixPattern    = regexp.MustCompile(`(?i)\b(remix|edit)\b`)
	livePattern     = regexp.MustCompile(`(?i)\blive\b`)
	remasterPattern = regexp.MustCompile(`(?i)\bremaster(ed)?\b`)
)

// Normalize maps raw (artists, title) strings to their canonical form.
// The mapping is pure and deterministic: the same input always produces the
// same output, byte for byte.
func Normalize(artists, title string) Result {
	flags := Flags{
		IsRemixOrEdit: remixPattern.MatchString(title),
		IsLive:        livePattern.MatchString(title),
		IsRemaster:    remasterPattern.MatchString(title),
	}

	var featuredArtist string

	if match := featureMarkerPattern.FindStringSubmatch(title); match != nil {
		featuredArtist = strings.TrimSpace(match[1])
		title = featureMarkerPattern.ReplaceAllString(title, "")
	}

	cleanArtists := cleanString(artists)
	if featuredArtist != "" {
		cleanArtists = strings.TrimSpace(cleanArtists + " & " + cleanString(featuredArtist))
	}

	cleanTitle := cleanString(title)

	primaryArtist := cleanArtists
	if parts := multiArtistSeparatorPattern.Split(artists, -1); len(parts) > 0 {
		primaryArtist = cleanString(parts[0])
	}

	return Result{
		CleanArtists:  cleanArtists,
		CleanTitle:    cleanTitle,
		PrimaryArtist: primaryArtist,
		Flags:         flags,
	}
}

// cleanString lowercases s, strips punctuation (preserving "&"), and
// collapses whitespace.
func cleanString(s string) string {
	s = strings.ToLower(s)
	s = punctuationPattern.ReplaceAllString(s, " ")
	s = whitespacePattern.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// Tokenize lazily splits CleanTitle on whitespace, memoizing the result on
// the Result value. Used by the ranking engine to build its working copy.
func (r *Result) Tokenize() []string {
	if r.tokens != nil {
		return r.tokens
	}

	if r.CleanTitle == "" {
		r.tokens = []string{}

		return r.tokens
	}

	r.tokens = strings.Split(r.CleanTitle, " ")

	return r.tokens
}

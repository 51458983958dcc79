package ranking

// Config holds every tunable constant the ranking algorithm consults.
// No scoring rule may read a literal outside this struct.
type Config struct {
	// ArtistBonusPerMatch is awarded for each reference artist token found in
	// the candidate title or channel.
	ArtistBonusPerMatch float64
	// ArtistPenaltyPerMiss is deducted for each reference artist token not found.
	ArtistPenaltyPerMiss float64

	// TitleExactMatchBonus is awarded when the working title equals the
	// reference title exactly, after artist tokens have been consumed.
	TitleExactMatchBonus float64
	// TitleTokenBonusPerMatch is awarded per reference title token found in
	// the working title, when an exact match was not achieved.
	TitleTokenBonusPerMatch float64
	// TitleTokenPenaltyPerMiss is deducted per reference title token not found.
	TitleTokenPenaltyPerMiss float64
	// TitleRemainingTokenPenalty is deducted per token still present in the
	// working title after artist and title matches have been consumed.
	TitleRemainingTokenPenalty float64
	// TitleRemainingTokenPenaltyMax is a signed floor on the aggregate
	// remaining-token penalty: the penalty never drops below this value.
	TitleRemainingTokenPenaltyMax float64

	// ExtendedLargeBonus is awarded when an extended/club/original-mix mention
	// is detected and the quality gates below all pass.
	ExtendedLargeBonus float64
	// ExtendedMaxRemainingPenaltyAllowed is the maximum |remaining-token
	// penalty| tolerated for the extended bonus to apply.
	ExtendedMaxRemainingPenaltyAllowed float64
	// ExtendedMinArtistScore is the minimum artist family score required.
	ExtendedMinArtistScore float64
	// ExtendedMinTitleScore is the minimum title family score required.
	ExtendedMinTitleScore float64

	// DurationPenaltyTooShort is awarded (a large negative) when the
	// candidate is shorter than the reference.
	DurationPenaltyTooShort float64
	// DurationMaxRatio bounds how much longer than the reference a candidate
	// may be while still earning a proportional bonus.
	DurationMaxRatio float64
	// DurationBonusMin is the bonus awarded just past a zero-length delta.
	DurationBonusMin float64
	// DurationBonusMax is the bonus awarded at exactly DurationMaxRatio.
	DurationBonusMax float64
}

// DefaultConfig returns the constant set derived from the documented
// end-to-end scenarios. Deployments may override any field.
func DefaultConfig() Config {
	return Config{
		ArtistBonusPerMatch:  50,
		ArtistPenaltyPerMiss: 20,

		TitleExactMatchBonus:          100,
		TitleTokenBonusPerMatch:       15,
		TitleTokenPenaltyPerMiss:      15,
		TitleRemainingTokenPenalty:    10,
		TitleRemainingTokenPenaltyMax: -30,

		ExtendedLargeBonus:                 40,
		ExtendedMaxRemainingPenaltyAllowed: 10,
		ExtendedMinArtistScore:             30,
		ExtendedMinTitleScore:              10,

		DurationPenaltyTooShort: -100,
		DurationMaxRatio:        2.5,
		DurationBonusMin:        5,
		DurationBonusMax:        20,
	}
}

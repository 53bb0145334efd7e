package normalizer

// History buckets
const (
	MajoritySBucket       = "majority_S"
	PureMaliciousBucket   = "pure_malicious"
	SuspiciousComboBucket = "known_suspicious_combos"
	PureBenignBucket      = "pure_benign"
	RareMixedBucket       = "rare_mixed"
)

// Duration buckets
const (
	TinyBucket     = "tiny"
	TypicalBucket  = "typical"
	LongBucket     = "long"
	VeryLongBucket = "very_long"
	OtherBucket    = "other"
)

var pureMaliciousHistories = map[string]struct{}{
	"I": {}, "DTT": {},
}

var suspiciousComboHistories = map[string]struct{}{
	"ShAdDaFf": {}, "ShAdDafF": {}, "ShADadfF": {}, "ShADafF": {}, "ShADar": {},
	"ShAdDaFr": {}, "ShAdDfFr": {}, "ShAdDaft": {}, "ShADr": {}, "ShADdfFa": {},
}

var pureBenignHistories = map[string]struct{}{
	"D": {}, "Dd": {}, "R": {},
}

// BucketHistory collapses a Zeek history string into one of five buckets.
// The checks run in a fixed order and the first match wins. Anything not
// listed, including sequences never seen in training, is rare_mixed.
func BucketHistory(raw string) string {
	if raw == "S" {
		return MajoritySBucket
	}
	if _, ok := pureMaliciousHistories[raw]; ok {
		return PureMaliciousBucket
	}
	if _, ok := suspiciousComboHistories[raw]; ok {
		return SuspiciousComboBucket
	}
	if _, ok := pureBenignHistories[raw]; ok {
		return PureBenignBucket
	}
	return RareMixedBucket
}

// BucketDuration maps a connection duration in seconds to a bucket. Values in
// [0.001, 2.9) fall through to "other".
func BucketDuration(seconds float64) string {
	switch {
	case seconds < 0.001:
		return TinyBucket
	case seconds >= 2.9 && seconds <= 3.2:
		return TypicalBucket
	case seconds > 3.2 && seconds < 50:
		return LongBucket
	case seconds >= 50:
		return VeryLongBucket
	default:
		return OtherBucket
	}
}

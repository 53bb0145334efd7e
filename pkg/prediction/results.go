package prediction

import (
	"github.com/activecm/flowguard/resources"
	"github.com/globalsign/mgo/bson"
)

// Summary counts the stored predictions of each label, most frequent first
func Summary(res *resources.Resources) ([]LabelCount, error) {
	ssn := res.DB.Session.Copy()
	defer ssn.Close()

	var counts []LabelCount

	summaryQuery := []bson.M{
		{"$group": bson.M{
			"_id":            "$label",
			"count":          bson.M{"$sum": 1},
			"malicious":      bson.M{"$max": "$malicious"},
			"avg_confidence": bson.M{"$avg": "$confidence"},
		}},
		{"$sort": bson.M{"count": -1}},
	}

	err := ssn.DB(res.DB.GetSelectedDB()).C(res.Config.T.Prediction.PredictionTable).Pipe(summaryQuery).AllowDiskUse().All(&counts)

	return counts, err
}

// MaliciousResults returns the malicious predictions sorted by confidence.
// limit and noLimit control how many results are returned.
func MaliciousResults(res *resources.Resources, limit int, noLimit bool) ([]Result, error) {
	ssn := res.DB.Session.Copy()
	defer ssn.Close()

	var results []Result

	query := ssn.DB(res.DB.GetSelectedDB()).C(res.Config.T.Prediction.PredictionTable).
		Find(bson.M{"malicious": true}).Sort("-confidence", "ts")

	if !noLimit {
		query = query.Limit(limit)
	}

	err := query.All(&results)
	return results, err
}

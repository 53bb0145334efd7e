package prediction

import (
	"testing"

	"github.com/activecm/flowguard/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertAndSummary(t *testing.T) {
	res := resources.InitIntegrationTestingResources(t)
	defer res.Close()

	res.DB.SelectDB(res.Config.S.Batch.Database)
	defer func() {
		_ = res.DB.Session.DB(res.DB.GetSelectedDB()).DropDatabase()
	}()

	repo := NewMongoRepository(res.DB, res.Config, res.Log, 2, false)
	require.NoError(t, repo.CreateIndexes())

	inputs := []*Input{
		{UID: "C1", Label: "malicious", Confidence: 0.9, Malicious: true},
		{UID: "C2", Label: "malicious", Confidence: 0.7, Malicious: true},
		{UID: "C3", Label: "benign", Confidence: 0.8},
	}
	assert.Equal(t, 0, repo.Upsert(inputs))

	// re-classifying a flow replaces its earlier prediction
	assert.Equal(t, 0, repo.Upsert([]*Input{{UID: "C3", Label: "benign", Confidence: 0.6}}))

	counts, err := Summary(res)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "malicious", counts[0].Label)
	assert.EqualValues(t, 2, counts[0].Count)
	assert.True(t, counts[0].Malicious)
	assert.InDelta(t, 0.8, counts[0].AvgConfidence, 1e-9)
	assert.Equal(t, "benign", counts[1].Label)
	assert.EqualValues(t, 1, counts[1].Count)
	assert.InDelta(t, 0.6, counts[1].AvgConfidence, 1e-9)

	top, err := MaliciousResults(res, 1, false)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "C1", top[0].UID)

	all, err := MaliciousResults(res, 0, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bouthilx/track/aggregator"
	"github.com/bouthilx/track/structure"
)

func sampleTrial() *structure.Trial {
	trial := structure.NewTrial()
	trial.UID = "abc_0"
	trial.Name = "baseline"
	trial.Version = "0123456789abcdef"
	trial.ProjectID = "p1"
	trial.GroupID = "g1"
	trial.Parameters["lr"] = 0.1

	ts := aggregator.NewTimeSeriesAggregator()
	for i := 0; i < 15; i++ {
		ts.Append(float64(i))
	}
	trial.Metrics["loss"] = ts
	return trial
}

func TestDigest_FullFormKeepsIdentity(t *testing.T) {
	digest := Digest(sampleTrial(), false)

	assert.Equal(t, "trial", digest["dtype"])
	assert.Equal(t, "abc_0", digest["uid"])
	assert.Equal(t, "p1", digest["project_id"])
	assert.Equal(t, "g1", digest["group_id"])
	assert.Equal(t, "0123456789abcdef", digest["version"])
	assert.NotEmpty(t, digest["hash"])

	series, ok := digest["metrics"].(map[string]any)["loss"].([]any)
	require.True(t, ok)
	assert.Len(t, series, 15)
}

func TestDigest_ShortFormDropsIdentityAndCuts(t *testing.T) {
	digest := Digest(sampleTrial(), true)

	for _, key := range []string{"dtype", "uid", "hash", "project_id", "group_id"} {
		assert.NotContains(t, digest, key)
	}
	assert.Equal(t, "0123456789", digest["version"])

	series, ok := digest["metrics"].(map[string]any)["loss"].([]any)
	require.True(t, ok)
	assert.Len(t, series, 10)
	assert.Equal(t, 14.0, series[len(series)-1])
}

func TestDigest_StatusShape(t *testing.T) {
	trial := structure.NewTrial()
	digest := Digest(trial, false)

	status, ok := digest["status"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "new", status["name"])
	assert.Equal(t, 0, status["value"])
}

func TestDigest_ProjectAndGroup(t *testing.T) {
	p := structure.NewProject("mnist", "digits", nil)
	p.UID = "p1"
	p.Groups = append(p.Groups, "g1")

	digest := Digest(p, false)
	assert.Equal(t, "project", digest["dtype"])
	assert.Equal(t, "mnist", digest["name"])
	assert.Equal(t, []string{"g1"}, digest["groups"])

	g := structure.NewTrialGroup("sweep", "", nil)
	g.UID = "g1"
	g.ProjectID = "p1"

	digest = Digest(g, false)
	assert.Equal(t, "trial_group", digest["dtype"])
	assert.Equal(t, "p1", digest["project_id"])
}

func TestDigest_UnknownTypeIsNil(t *testing.T) {
	assert.Nil(t, Digest(42, false))
}

func TestDigest_SteppedMetricsPassThrough(t *testing.T) {
	trial := structure.NewTrial()
	trial.Metrics["acc"] = map[string]any{"0": 0.3, "1": 0.6}

	digest := Digest(trial, true)
	metrics, ok := digest["metrics"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"0": 0.3, "1": 0.6}, metrics["acc"])
}

package inference

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalPersistsAsPair(t *testing.T) {
	data, err := json.Marshal(map[string]Interval{"3": {Lower: 0.1, Upper: 0.4}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"3":[0.1,0.4]}`, string(data))

	var back map[string]Interval
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Interval{Lower: 0.1, Upper: 0.4}, back["3"])
}

func TestDefaultTimeline(t *testing.T) {
	tl := DefaultTimeline()
	assert.Equal(t, -400.0, tl.Ms(0))
	assert.Equal(t, 980.0, tl.Ms(69))
	assert.Equal(t, []string{"-400ms", "-380ms"}, tl.Labels(2))
	assert.Error(t, Timeline{}.Validate())
}

func TestParseTail(t *testing.T) {
	tail, err := ParseTail("Both")
	require.NoError(t, err)
	assert.Equal(t, TailBoth, tail)
	_, err = ParseTail("left")
	assert.Error(t, err)
}

func TestSignificantIndices(t *testing.T) {
	r := &PermutationResult{Reject: []bool{false, true, true, false}}
	assert.Equal(t, []int{1, 2}, r.Significant())
	assert.Equal(t, "edges vs. action", PeakDifference{FeatureA: "edges", FeatureB: "action"}.Key())
}

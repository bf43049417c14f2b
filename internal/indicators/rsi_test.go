package indicators

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fotonphotos/tokenmarket/internal/store"
)

func risingCloses(n int) []string {
	values := make([]string, n)
	for i := range values {
		values[i] = strconv.Itoa(i + 1)
	}
	return values
}

func TestComputeRSI_BelowWarmupProducesNoBars(t *testing.T) {
	all := closes(risingCloses(10)...)

	result := ComputeRSI(nil, nil, all, 0, 900)

	assert.Empty(t, result.UpdatedBars)
	assert.Equal(t, store.EMANotAvailable, result.State.Status)
}

func TestComputeRSI_ZeroAvgLossYieldsMaxRSI(t *testing.T) {
	all := closes(risingCloses(15)...)

	result := ComputeRSI(nil, nil, all, 0, 900)

	last := all[len(all)-1]
	bar, ok := result.UpdatedBars[last.UnixTime]
	require.True(t, ok, "the 15th bar crosses the warmup gate and must be emitted")
	require.NotNil(t, bar.RSI)
	assert.True(t, bar.RSI.Equal(dec("100")), "an all-gain warmup has zero avg loss, which the engine clamps to RSI 100")
	assert.Equal(t, store.EMAAvailable, result.State.Status)
}

func TestComputeRSI_StochKDChainPopulatesOnceHistoryIsDeepEnough(t *testing.T) {
	all := closes(risingCloses(35)...)

	result := ComputeRSI(nil, nil, all, 0, 900)

	last := all[len(all)-1]
	bar, ok := result.UpdatedBars[last.UnixTime]
	require.True(t, ok)
	require.NotNil(t, bar.StochRSI, "35 bars is enough history for the stoch-RSI window to fill")
	require.NotNil(t, bar.K, "enough stoch-RSI values have accumulated to seed %%K")
	require.NotNil(t, bar.D, "enough %%K values have accumulated to seed %%D")
	assert.True(t, bar.StochRSI.Equal(dec("50")), "a constant RSI series collapses min==max, which the engine maps to 50")
}

func TestComputeRSI_IncrementalPassResumesFromExistingState(t *testing.T) {
	first := closes(risingCloses(16)...)
	firstResult := ComputeRSI(nil, nil, first, 0, 900)

	more := closesFrom(first[len(first)-1].UnixTime+900, "17", "18")
	priorClose := first[len(first)-1].Close
	secondResult := ComputeRSI(&firstResult.State, &priorClose, more, 0, 900)

	assert.Len(t, secondResult.UpdatedBars, 2, "an incremental pass only emits the newly folded bars")
	assert.Equal(t, more[len(more)-1].UnixTime, secondResult.State.LastUpdatedUnix)
}

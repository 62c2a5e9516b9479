package refresh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantfabric/barforge/internal/persistence"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDecide(t *testing.T) {
	src := persistence.SourceRange{
		AssetID:  "BTC",
		DailyMin: day(2024, time.January, 1),
		DailyMax: day(2024, time.March, 31),
		Count:    91,
	}
	state := func(minSeen, lastClose time.Time) *persistence.RefreshState {
		return &persistence.RefreshState{
			AssetID:       "BTC",
			TF:            "7D",
			DailyMinSeen:  minSeen,
			DailyMaxSeen:  lastClose,
			LastTimeClose: lastClose,
		}
	}

	cases := []struct {
		name      string
		state     *persistence.RefreshState
		barsExist bool
		want      TriageAction
	}{
		{
			name: "no state, no bars", want: ActionFullBuild,
		},
		{
			name: "no state, bars exist", barsExist: true, want: ActionSeed,
		},
		{
			name:  "state without bars",
			state: state(day(2024, time.January, 1), day(2024, time.March, 1)),
			want:  ActionRebuild,
		},
		{
			name:      "backfill ahead of stored min",
			state:     state(day(2024, time.February, 1), day(2024, time.March, 1)),
			barsExist: true,
			want:      ActionRebuild,
		},
		{
			name:      "source max at watermark",
			state:     state(day(2024, time.January, 1), day(2024, time.March, 31)),
			barsExist: true,
			want:      ActionNoop,
		},
		{
			name:      "source advanced",
			state:     state(day(2024, time.January, 1), day(2024, time.March, 20)),
			barsExist: true,
			want:      ActionAppend,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(src, tc.state, tc.barsExist))
		})
	}
}

func TestDecideRejectedTailStaysNoop(t *testing.T) {
	// DailyMaxSeen can run ahead of LastTimeClose when every trailing source
	// row was rejected. Triage keys off the observed max, so the pair settles
	// to no-op instead of re-fetching the rejected tail forever.
	src := persistence.SourceRange{
		AssetID:  "BTC",
		DailyMin: day(2024, time.January, 1),
		DailyMax: day(2024, time.March, 31),
		Count:    91,
	}
	st := &persistence.RefreshState{
		AssetID:       "BTC",
		TF:            "7D",
		DailyMinSeen:  day(2024, time.January, 1),
		DailyMaxSeen:  day(2024, time.March, 31),
		LastTimeClose: time.Date(2024, time.March, 28, 23, 59, 59, 0, time.UTC),
	}
	assert.Equal(t, ActionNoop, Decide(src, st, true))
}

func TestTriageActionString(t *testing.T) {
	assert.Equal(t, "full_build", ActionFullBuild.String())
	assert.Equal(t, "seed", ActionSeed.String())
	assert.Equal(t, "rebuild", ActionRebuild.String())
	assert.Equal(t, "noop", ActionNoop.String())
	assert.Equal(t, "append", ActionAppend.String())
	assert.Equal(t, "unknown", TriageAction(99).String())
}

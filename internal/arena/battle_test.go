package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSumListenTime(t *testing.T) {
	t.Run("SimplePlayPause", func(t *testing.T) {
		data := []ListenDatum{
			{Event: EventPlay, Timestamp: 0},
			{Event: EventPause, Timestamp: 5},
		}
		assert.Equal(t, 5.0, SumListenTime(data, 100))
	})

	t.Run("MultipleIntervals", func(t *testing.T) {
		data := []ListenDatum{
			{Event: EventPlay, Timestamp: 0},
			{Event: EventPause, Timestamp: 3},
			{Event: EventPlay, Timestamp: 10},
			{Event: EventPause, Timestamp: 14},
		}
		assert.Equal(t, 7.0, SumListenTime(data, 100))
	})

	t.Run("UnmatchedPlayCoercedToVoteTime", func(t *testing.T) {
		data := []ListenDatum{
			{Event: EventPlay, Timestamp: 0},
			{Event: EventPlay, Timestamp: 2},
		}
		assert.Equal(t, 20.0, SumListenTime(data, 20))
	})

	t.Run("SeekClosesOpenPlay", func(t *testing.T) {
		data := []ListenDatum{
			{Event: EventPlay, Timestamp: 0},
			{Event: EventSeek, Timestamp: 4},
			{Event: EventPlay, Timestamp: 4},
			{Event: EventPause, Timestamp: 6},
		}
		assert.Equal(t, 6.0, SumListenTime(data, 100))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, 0.0, SumListenTime(nil, 100))
	})
}

func TestBattleRecordAnonymized(t *testing.T) {
	rec := NewBattleRecord()
	a, _ := NewSystemKey("noise", "loud")
	b, _ := NewSystemKey("noise", "quiet")
	rec.ASystemKey = a
	rec.BSystemKey = b
	rec.AMetadata = ResponseMetadata{SystemKey: a}
	rec.BMetadata = ResponseMetadata{SystemKey: b}
	rec.Timings = []TimingEvent{{Stage: "route", Timestamp: 1}}

	red := rec.Anonymized()
	assert.Equal(t, "anonymized", red.ASystemKey.SystemTag)
	assert.Equal(t, "anonymized", red.BSystemKey.SystemTag)
	assert.Equal(t, "anonymized", red.AMetadata.SystemKey.SystemTag)
	assert.Nil(t, red.Timings)

	// original record is untouched
	assert.Equal(t, a, rec.ASystemKey)
}

func TestUserChecksumStable(t *testing.T) {
	u1 := NewUser("1.2.3.4", "fp-abc")
	u2 := NewUser("1.2.3.4", "fp-abc")
	assert.Equal(t, u1.Checksum(), u2.Checksum())
	assert.NotEqual(t, "1.2.3.4", u1.SaltedIP)
}

func TestVoteListenTimeHelpers(t *testing.T) {
	v := Vote{
		PreferenceTime: 30,
		AListenData: []ListenDatum{
			{Event: EventPlay, Timestamp: 0},
			{Event: EventPause, Timestamp: 10},
		},
		BListenData: []ListenDatum{
			{Event: EventPlay, Timestamp: 0},
			{Event: EventPause, Timestamp: 2},
		},
	}
	assert.Equal(t, 10.0, v.AListenTime())
	assert.Equal(t, 2.0, v.BListenTime())
}

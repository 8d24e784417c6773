package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeUpdateKeepsUntouchedFields(t *testing.T) {
	v := NewVideo("so1")
	v.Set(VideoFields{
		ContentFields: ContentFields{Title: Ptr("A")},
		Metrics:       Metrics{ViewCount: Ptr(int64(5))},
	})

	v.Update(VideoFields{Metrics: Metrics{ViewCount: Ptr(int64(10))}})

	require.NotNil(t, v.Title)
	assert.Equal(t, "A", *v.Title)
	assert.Equal(t, int64(10), *v.ViewCount)
}

func TestReplaceAllClearsMissingFields(t *testing.T) {
	v := NewVideo("so1")
	v.Set(VideoFields{
		ContentFields: ContentFields{Title: Ptr("A"), Tags: []string{"x"}, Deleted: Ptr(true)},
		Metrics:       Metrics{ViewCount: Ptr(int64(5))},
	})

	v.Set(VideoFields{Metrics: Metrics{ViewCount: Ptr(int64(10))}})

	assert.Nil(t, v.Title)
	assert.Nil(t, v.Tags)
	assert.False(t, v.Deleted)
	assert.Equal(t, int64(10), *v.ViewCount)
}

func TestLiveMergeAndReplace(t *testing.T) {
	start := time.Date(2024, 3, 10, 21, 0, 0, 0, time.UTC)
	l := NewLive("lv1")
	l.Set(LiveFields{LiveSchedule: LiveSchedule{Status: Ptr(StatusFuture), StartAt: &start}})

	l.Update(LiveFields{LiveSchedule: LiveSchedule{Status: Ptr(StatusNow)}})
	assert.Equal(t, StatusNow, *l.Status)
	assert.Equal(t, start, *l.StartAt)

	l.Set(LiveFields{LiveSchedule: LiveSchedule{Status: Ptr(StatusPast)}})
	assert.Nil(t, l.StartAt)
}

func TestStringsAreNFKCNormalized(t *testing.T) {
	n := NewNews("ar１")
	n.Set(NewsFields{
		ContentFields: ContentFields{Title: Ptr("ｶﾀｶﾅ　ＡＢＣ１２３"), Tags: []string{"ﾀｸﾞ"}},
		Body:          Ptr("①"),
	})

	assert.Equal(t, "ar1", n.ID())
	assert.Equal(t, "カタカナ ABC123", *n.Title)
	assert.Equal(t, []string{"タグ"}, n.Tags)
	assert.Equal(t, "1", *n.Body)

	n.Update(NewsFields{ContentFields: ContentFields{PosterName: Ptr("ﾁｬﾝﾈﾙ")}})
	assert.Equal(t, "チャンネル", *n.PosterName)
}

func TestEqualityIsByIdentifier(t *testing.T) {
	a := NewVideo("so1")
	a.Set(VideoFields{ContentFields: ContentFields{Title: Ptr("A")}})
	b := NewVideo("so1")
	b.Set(VideoFields{ContentFields: ContentFields{Title: Ptr("B")}})
	assert.True(t, a.Equal(b))

	c := NewVideo("so2")
	c.Set(VideoFields{ContentFields: ContentFields{Title: Ptr("A")}})
	assert.False(t, a.Equal(c))

	assert.False(t, a.Equal(NewLive("so1")), "different kinds never compare equal")
	assert.False(t, a.Equal(nil))
}

func TestLiveElapsed(t *testing.T) {
	l := NewLive("lv1")
	_, ok := l.Elapsed()
	assert.False(t, ok)

	start := time.Date(2024, 3, 10, 21, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	l.Update(LiveFields{LiveSchedule: LiveSchedule{StartAt: &start, EndAt: &end}})
	d, ok := l.Elapsed()
	assert.True(t, ok)
	assert.Equal(t, 90*time.Minute, d)
}

func TestToMapFormatsTimesAndDurations(t *testing.T) {
	jst := time.FixedZone("Asia/Tokyo", 9*60*60)
	posted := time.Date(2023, 9, 8, 19, 0, 0, 0, jst)
	v := NewVideo("so42")
	v.Set(VideoFields{
		ContentFields: ContentFields{Title: Ptr("t"), PostedAt: &posted},
		Metrics:       Metrics{Duration: Ptr(115*time.Minute + 56*time.Second)},
	})

	m := v.ToMap()
	assert.Equal(t, "so42", m["id"])
	assert.Equal(t, "video", m["kind"])
	assert.Equal(t, "2023-09-08T19:00:00+09:00", m["posted_at"])
	assert.Equal(t, int64(6956), m["duration"])
	assert.Nil(t, m["view_count"])
	assert.Equal(t, []string{}, m["tags"])
}

func TestJSONRoundTripPreservesRecord(t *testing.T) {
	start := time.Date(2024, 3, 10, 21, 0, 0, 0, time.UTC)
	l := NewLive("lv9")
	l.Set(LiveFields{
		ContentFields: ContentFields{Title: Ptr("配信"), Tags: []string{"a", "b"}},
		Metrics:       Metrics{Duration: Ptr(time.Hour), ViewCount: Ptr(int64(3))},
		LiveSchedule:  LiveSchedule{Status: Ptr(StatusPast), StartAt: &start, ArchiveEnabled: Ptr(true)},
	})

	b, err := json.Marshal(l)
	require.NoError(t, err)

	var got Live
	require.NoError(t, json.Unmarshal(b, &got))
	assert.True(t, l.Equal(&got))
	if diff := cmp.Diff(l.ToMap(), got.ToMap()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFromMapDispatchesOnKind(t *testing.T) {
	w := NewWork("RJ01077937")
	w.Set(WorkFields{WorkInfo: WorkInfo{BasePrice: Ptr(int64(1320)), Rating: Ptr(4.5)}})

	rec, err := FromMap(w.ToMap())
	require.NoError(t, err)
	got, ok := rec.(*Work)
	require.True(t, ok)
	assert.Equal(t, int64(1320), *got.BasePrice)
	assert.Equal(t, 4.5, *got.Rating)

	_, err = FromMap(map[string]any{"id": "x", "kind": "podcast"})
	assert.Error(t, err)

	_, err = VideoFromMap(map[string]any{"id": "x", "view_count": "many"})
	assert.Error(t, err)
}

func TestTypedErrorsWrapCause(t *testing.T) {
	cause := errors.New("selector timed out")
	err := fmt.Errorf("listing: %w", &StructureNotFoundError{URL: "https://example.com", Reason: ReasonUnknown, Err: cause})

	var snf *StructureNotFoundError
	require.ErrorAs(t, err, &snf)
	assert.False(t, snf.WrongIdentifier())
	assert.ErrorIs(t, err, cause)

	assert.Contains(t, (&InvalidIdentifierError{Kind: "channel", Value: "x1"}).Error(), `"x1"`)
}

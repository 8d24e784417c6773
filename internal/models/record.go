package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Flat map keys
const (
	keyID             = "id"
	keyKind           = "kind"
	keyPosterID       = "poster_id"
	keyPosterName     = "poster_name"
	keyPosterURL      = "poster_url"
	keyTitle          = "title"
	keyURL            = "url"
	keyThumbnail      = "thumbnail"
	keyPostedAt       = "posted_at"
	keyUpdatedAt      = "updated_at"
	keyTags           = "tags"
	keyDeleted        = "is_deleted"
	keyDescription    = "description"
	keyDuration       = "duration"
	keyViewCount      = "view_count"
	keyLikeCount      = "like_count"
	keyCommentCount   = "comment_count"
	keyStatus         = "status"
	keyStartAt        = "start_at"
	keyEndAt          = "end_at"
	keyArchiveEnabled = "archive_enabled"
	keyArchiveUntil   = "archive_until"
	keyBody           = "body"
	keyCategory       = "category"
	keySaleStatus     = "sale_status"
	keyBasePrice      = "base_price"
	keyDiscountPrice  = "discount_price"
	keySaleCount      = "sale_count"
	keyRating         = "rating"
	keyRatingCount    = "rating_count"
	keyFavoriteCount  = "favorite_count"
)

func (c *Content) toMap() map[string]any {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		keyID:         c.id,
		keyKind:       string(c.kind),
		keyPosterID:   optional(c.PosterID),
		keyPosterName: optional(c.PosterName),
		keyPosterURL:  optional(c.PosterURL),
		keyTitle:      optional(c.Title),
		keyURL:        optional(c.URL),
		keyThumbnail:  optional(c.Thumbnail),
		keyPostedAt:   isoTime(c.PostedAt),
		keyUpdatedAt:  isoTime(c.UpdatedAt),
		keyTags:       tags,
		keyDeleted:    c.Deleted,
	}
}

func (m Metrics) fill(out map[string]any) {
	out[keyDescription] = optional(m.Description)
	out[keyDuration] = seconds(m.Duration)
	out[keyViewCount] = optional(m.ViewCount)
	out[keyLikeCount] = optional(m.LikeCount)
	out[keyCommentCount] = optional(m.CommentCount)
}

// ToMap flattens the record: timestamps become ISO-8601 strings, durations
// integer seconds and unknown fields nil.
func (v *Video) ToMap() map[string]any {
	out := v.Content.toMap()
	v.Metrics.fill(out)
	return out
}

func (l *Live) ToMap() map[string]any {
	out := l.Content.toMap()
	l.Metrics.fill(out)
	if l.Status != nil {
		out[keyStatus] = string(*l.Status)
	} else {
		out[keyStatus] = nil
	}
	out[keyStartAt] = isoTime(l.StartAt)
	out[keyEndAt] = isoTime(l.EndAt)
	out[keyArchiveEnabled] = optional(l.ArchiveEnabled)
	out[keyArchiveUntil] = isoTime(l.ArchiveUntil)
	return out
}

func (n *News) ToMap() map[string]any {
	out := n.Content.toMap()
	out[keyBody] = optional(n.Body)
	return out
}

func (w *Work) ToMap() map[string]any {
	out := w.Content.toMap()
	out[keyDescription] = optional(w.Description)
	out[keyCategory] = optional(w.Category)
	out[keySaleStatus] = optional(w.SaleStatus)
	out[keyBasePrice] = optional(w.BasePrice)
	out[keyDiscountPrice] = optional(w.DiscountPrice)
	out[keySaleCount] = optional(w.SaleCount)
	out[keyRating] = optional(w.Rating)
	out[keyRatingCount] = optional(w.RatingCount)
	out[keyFavoriteCount] = optional(w.FavoriteCount)
	return out
}

// FromMap rebuilds a record from ToMap output or its JSON decoding. The
// "kind" key selects the type.
func FromMap(m map[string]any) (Record, error) {
	kind, _ := m[keyKind].(string)
	switch Kind(kind) {
	case KindVideo:
		return VideoFromMap(m)
	case KindLive:
		return LiveFromMap(m)
	case KindNews:
		return NewsFromMap(m)
	case KindWork:
		return WorkFromMap(m)
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
}

func VideoFromMap(m map[string]any) (*Video, error) {
	r := reader{m: m}
	v := NewVideo(r.id())
	v.Set(VideoFields{ContentFields: r.content(), Metrics: r.metrics()})
	return v, r.err
}

func LiveFromMap(m map[string]any) (*Live, error) {
	r := reader{m: m}
	l := NewLive(r.id())
	var status *LiveStatus
	if s := r.str(keyStatus); s != nil {
		status = Ptr(LiveStatus(*s))
	}
	l.Set(LiveFields{
		ContentFields: r.content(),
		Metrics:       r.metrics(),
		LiveSchedule: LiveSchedule{
			Status:         status,
			StartAt:        r.time(keyStartAt),
			EndAt:          r.time(keyEndAt),
			ArchiveEnabled: r.bool(keyArchiveEnabled),
			ArchiveUntil:   r.time(keyArchiveUntil),
		},
	})
	return l, r.err
}

func NewsFromMap(m map[string]any) (*News, error) {
	r := reader{m: m}
	n := NewNews(r.id())
	n.Set(NewsFields{ContentFields: r.content(), Body: r.str(keyBody)})
	return n, r.err
}

func WorkFromMap(m map[string]any) (*Work, error) {
	r := reader{m: m}
	w := NewWork(r.id())
	w.Set(WorkFields{
		ContentFields: r.content(),
		WorkInfo: WorkInfo{
			Description:   r.str(keyDescription),
			Category:      r.str(keyCategory),
			SaleStatus:    r.str(keySaleStatus),
			BasePrice:     r.int(keyBasePrice),
			DiscountPrice: r.int(keyDiscountPrice),
			SaleCount:     r.int(keySaleCount),
			Rating:        r.float(keyRating),
			RatingCount:   r.int(keyRatingCount),
			FavoriteCount: r.int(keyFavoriteCount),
		},
	})
	return w, r.err
}

func (v *Video) MarshalJSON() ([]byte, error) { return json.Marshal(v.ToMap()) }
func (l *Live) MarshalJSON() ([]byte, error)  { return json.Marshal(l.ToMap()) }
func (n *News) MarshalJSON() ([]byte, error)  { return json.Marshal(n.ToMap()) }
func (w *Work) MarshalJSON() ([]byte, error)  { return json.Marshal(w.ToMap()) }

func (v *Video) UnmarshalJSON(b []byte) error {
	return unmarshalInto(b, VideoFromMap, v)
}

func (l *Live) UnmarshalJSON(b []byte) error {
	return unmarshalInto(b, LiveFromMap, l)
}

func (n *News) UnmarshalJSON(b []byte) error {
	return unmarshalInto(b, NewsFromMap, n)
}

func (w *Work) UnmarshalJSON(b []byte) error {
	return unmarshalInto(b, WorkFromMap, w)
}

func unmarshalInto[T any](b []byte, build func(map[string]any) (*T, error), dst *T) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	rec, err := build(m)
	if err != nil {
		return err
	}
	*dst = *rec
	return nil
}

// ToMaps flattens a slice of records.
func ToMaps[R Record](records []R) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		out = append(out, r.ToMap())
	}
	return out
}

func optional[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func isoTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func seconds(d *time.Duration) any {
	if d == nil {
		return nil
	}
	return int64(d.Seconds())
}

// reader pulls typed values out of a flat map and keeps the first error.
type reader struct {
	m   map[string]any
	err error
}

func (r *reader) fail(key string, v any) {
	if r.err == nil {
		r.err = fmt.Errorf("field %s: unexpected value %v (%T)", key, v, v)
	}
}

func (r *reader) id() string {
	s := r.str(keyID)
	if s == nil {
		if r.err == nil {
			r.err = fmt.Errorf("field %s: missing", keyID)
		}
		return ""
	}
	return *s
}

func (r *reader) content() ContentFields {
	return ContentFields{
		PosterID:   r.str(keyPosterID),
		PosterName: r.str(keyPosterName),
		PosterURL:  r.str(keyPosterURL),
		Title:      r.str(keyTitle),
		URL:        r.str(keyURL),
		Thumbnail:  r.str(keyThumbnail),
		PostedAt:   r.time(keyPostedAt),
		UpdatedAt:  r.time(keyUpdatedAt),
		Tags:       r.strings(keyTags),
		Deleted:    r.bool(keyDeleted),
	}
}

func (r *reader) metrics() Metrics {
	var d *time.Duration
	if n := r.int(keyDuration); n != nil {
		d = Ptr(time.Duration(*n) * time.Second)
	}
	return Metrics{
		Description:  r.str(keyDescription),
		Duration:     d,
		ViewCount:    r.int(keyViewCount),
		LikeCount:    r.int(keyLikeCount),
		CommentCount: r.int(keyCommentCount),
	}
}

func (r *reader) str(key string) *string {
	v, ok := r.m[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		r.fail(key, v)
		return nil
	}
	return &s
}

func (r *reader) time(key string) *time.Time {
	s := r.str(key)
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		r.fail(key, *s)
		return nil
	}
	return &t
}

func (r *reader) bool(key string) *bool {
	v, ok := r.m[key]
	if !ok || v == nil {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		r.fail(key, v)
		return nil
	}
	return &b
}

func (r *reader) int(key string) *int64 {
	v, ok := r.m[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case int:
		return Ptr(int64(n))
	case int64:
		return &n
	case float64:
		if n != math.Trunc(n) {
			r.fail(key, v)
			return nil
		}
		return Ptr(int64(n))
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			r.fail(key, v)
			return nil
		}
		return &i
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			r.fail(key, v)
			return nil
		}
		return &i
	default:
		r.fail(key, v)
		return nil
	}
}

func (r *reader) float(key string) *float64 {
	v, ok := r.m[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		return Ptr(float64(n))
	case int64:
		return Ptr(float64(n))
	default:
		r.fail(key, v)
		return nil
	}
}

func (r *reader) strings(key string) []string {
	v, ok := r.m[key]
	if !ok || v == nil {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			str, ok := e.(string)
			if !ok {
				r.fail(key, v)
				return nil
			}
			out = append(out, str)
		}
		return out
	default:
		r.fail(key, v)
		return nil
	}
}

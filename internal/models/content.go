package models

import (
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Kind names a record type
type Kind string

const (
	KindVideo Kind = "video"
	KindLive  Kind = "live"
	KindNews  Kind = "news"
	KindWork  Kind = "work"
)

// LiveStatus is the lifecycle position of a broadcast
type LiveStatus string

const (
	StatusFuture LiveStatus = "future"
	StatusNow    LiveStatus = "now"
	StatusPast   LiveStatus = "past"
)

// Record is implemented by every content type.
type Record interface {
	Kind() Kind
	Base() *Content
	ToMap() map[string]any
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Content holds the fields every record shares. A nil field is unknown.
// The identifier is fixed at construction.
type Content struct {
	id   string
	kind Kind

	PosterID   *string
	PosterName *string
	PosterURL  *string
	Title      *string
	URL        *string
	Thumbnail  *string
	PostedAt   *time.Time
	UpdatedAt  *time.Time
	Tags       []string
	Deleted    bool
}

// ContentFields carries values for the shared fields. Nil means "not given".
type ContentFields struct {
	PosterID   *string
	PosterName *string
	PosterURL  *string
	Title      *string
	URL        *string
	Thumbnail  *string
	PostedAt   *time.Time
	UpdatedAt  *time.Time
	Tags       []string
	Deleted    *bool
}

func newContent(kind Kind, id string) Content {
	return Content{id: norm.NFKC.String(id), kind: kind}
}

// ID returns the platform-scoped identifier.
func (c *Content) ID() string { return c.id }

func (c *Content) Kind() Kind { return c.kind }

func (c *Content) Base() *Content { return c }

// Equal reports whether other is the same item: same kind and identifier.
func (c *Content) Equal(other Record) bool {
	if other == nil {
		return false
	}
	o := other.Base()
	return c.kind == o.kind && c.id == o.id
}

func (c *Content) String() string {
	return fmt.Sprintf("「%s」 URL:%s", deref(c.Title), deref(c.URL))
}

// set overwrites every shared field, nil included.
func (c *Content) set(f ContentFields) {
	c.PosterID = normalized(f.PosterID)
	c.PosterName = normalized(f.PosterName)
	c.PosterURL = normalized(f.PosterURL)
	c.Title = normalized(f.Title)
	c.URL = normalized(f.URL)
	c.Thumbnail = normalized(f.Thumbnail)
	c.PostedAt = f.PostedAt
	c.UpdatedAt = f.UpdatedAt
	c.Tags = normalizedAll(f.Tags)
	c.Deleted = f.Deleted != nil && *f.Deleted
}

// merge overwrites only the shared fields that are given.
func (c *Content) merge(f ContentFields) {
	c.PosterID = pick(normalized(f.PosterID), c.PosterID)
	c.PosterName = pick(normalized(f.PosterName), c.PosterName)
	c.PosterURL = pick(normalized(f.PosterURL), c.PosterURL)
	c.Title = pick(normalized(f.Title), c.Title)
	c.URL = pick(normalized(f.URL), c.URL)
	c.Thumbnail = pick(normalized(f.Thumbnail), c.Thumbnail)
	c.PostedAt = pick(f.PostedAt, c.PostedAt)
	c.UpdatedAt = pick(f.UpdatedAt, c.UpdatedAt)
	if f.Tags != nil {
		c.Tags = normalizedAll(f.Tags)
	}
	if f.Deleted != nil {
		c.Deleted = *f.Deleted
	}
}

// Metrics are the optional counters of videos and broadcasts.
type Metrics struct {
	Description  *string
	Duration     *time.Duration
	ViewCount    *int64
	LikeCount    *int64
	CommentCount *int64
}

func (m Metrics) normalized() Metrics {
	m.Description = normalized(m.Description)
	return m
}

func (m *Metrics) merge(f Metrics) {
	f = f.normalized()
	m.Description = pick(f.Description, m.Description)
	m.Duration = pick(f.Duration, m.Duration)
	m.ViewCount = pick(f.ViewCount, m.ViewCount)
	m.LikeCount = pick(f.LikeCount, m.LikeCount)
	m.CommentCount = pick(f.CommentCount, m.CommentCount)
}

// Video is an uploaded video.
type Video struct {
	Content
	Metrics
}

// VideoFields is the argument of Video.Set and Video.Update
type VideoFields struct {
	ContentFields
	Metrics
}

func NewVideo(id string) *Video {
	return &Video{Content: newContent(KindVideo, id)}
}

// Set replaces every field with the given values; nil clears a field.
func (v *Video) Set(f VideoFields) {
	v.Content.set(f.ContentFields)
	v.Metrics = f.Metrics.normalized()
}

// Update fills in the given values and keeps the rest.
func (v *Video) Update(f VideoFields) {
	v.Content.merge(f.ContentFields)
	v.Metrics.merge(f.Metrics)
}

// LiveSchedule is the broadcast specific state of a Live.
type LiveSchedule struct {
	Status         *LiveStatus
	StartAt        *time.Time
	EndAt          *time.Time
	ArchiveEnabled *bool
	ArchiveUntil   *time.Time
}

func (s *LiveSchedule) merge(f LiveSchedule) {
	s.Status = pick(f.Status, s.Status)
	s.StartAt = pick(f.StartAt, s.StartAt)
	s.EndAt = pick(f.EndAt, s.EndAt)
	s.ArchiveEnabled = pick(f.ArchiveEnabled, s.ArchiveEnabled)
	s.ArchiveUntil = pick(f.ArchiveUntil, s.ArchiveUntil)
}

// Live is a scheduled, running or finished broadcast.
type Live struct {
	Content
	Metrics
	LiveSchedule
}

// LiveFields is the argument of Live.Set and Live.Update
type LiveFields struct {
	ContentFields
	Metrics
	LiveSchedule
}

func NewLive(id string) *Live {
	return &Live{Content: newContent(KindLive, id)}
}

func (l *Live) Set(f LiveFields) {
	l.Content.set(f.ContentFields)
	l.Metrics = f.Metrics.normalized()
	l.LiveSchedule = f.LiveSchedule
}

func (l *Live) Update(f LiveFields) {
	l.Content.merge(f.ContentFields)
	l.Metrics.merge(f.Metrics)
	l.LiveSchedule.merge(f.LiveSchedule)
}

// Elapsed returns the broadcast length: the stored duration, or end minus
// start once both are known.
func (l *Live) Elapsed() (time.Duration, bool) {
	if l.Duration != nil {
		return *l.Duration, true
	}
	if l.StartAt != nil && l.EndAt != nil {
		return l.EndAt.Sub(*l.StartAt), true
	}
	return 0, false
}

// News is a channel article.
type News struct {
	Content
	Body *string
}

// NewsFields is the argument of News.Set and News.Update
type NewsFields struct {
	ContentFields
	Body *string
}

func NewNews(id string) *News {
	return &News{Content: newContent(KindNews, id)}
}

func (n *News) Set(f NewsFields) {
	n.Content.set(f.ContentFields)
	n.Body = normalized(f.Body)
}

func (n *News) Update(f NewsFields) {
	n.Content.merge(f.ContentFields)
	n.Body = pick(normalized(f.Body), n.Body)
}

// WorkInfo is the storefront data of a Work.
type WorkInfo struct {
	Description   *string
	Category      *string
	SaleStatus    *string
	BasePrice     *int64
	DiscountPrice *int64
	SaleCount     *int64
	Rating        *float64
	RatingCount   *int64
	FavoriteCount *int64
}

func (w WorkInfo) normalized() WorkInfo {
	w.Description = normalized(w.Description)
	w.Category = normalized(w.Category)
	w.SaleStatus = normalized(w.SaleStatus)
	return w
}

func (w *WorkInfo) merge(f WorkInfo) {
	f = f.normalized()
	w.Description = pick(f.Description, w.Description)
	w.Category = pick(f.Category, w.Category)
	w.SaleStatus = pick(f.SaleStatus, w.SaleStatus)
	w.BasePrice = pick(f.BasePrice, w.BasePrice)
	w.DiscountPrice = pick(f.DiscountPrice, w.DiscountPrice)
	w.SaleCount = pick(f.SaleCount, w.SaleCount)
	w.Rating = pick(f.Rating, w.Rating)
	w.RatingCount = pick(f.RatingCount, w.RatingCount)
	w.FavoriteCount = pick(f.FavoriteCount, w.FavoriteCount)
}

// Work is a product sold on a doujin storefront.
type Work struct {
	Content
	WorkInfo
}

// WorkFields is the argument of Work.Set and Work.Update
type WorkFields struct {
	ContentFields
	WorkInfo
}

func NewWork(id string) *Work {
	return &Work{Content: newContent(KindWork, id)}
}

func (w *Work) Set(f WorkFields) {
	w.Content.set(f.ContentFields)
	w.WorkInfo = f.WorkInfo.normalized()
}

func (w *Work) Update(f WorkFields) {
	w.Content.merge(f.ContentFields)
	w.WorkInfo.merge(f.WorkInfo)
}

func pick[T any](next, cur *T) *T {
	if next != nil {
		return next
	}
	return cur
}

func normalized(s *string) *string {
	if s == nil {
		return nil
	}
	v := norm.NFKC.String(*s)
	return &v
}

func normalizedAll(ss []string) []string {
	if ss == nil {
		return nil
	}
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = norm.NFKC.String(s)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

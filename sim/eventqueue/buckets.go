package eventqueue

import (
	"math"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/eventq/sim/hooking"
)

// HookPosRebuild is reached after a bucket queue has redistributed its
// entries. The hook Detail is the BucketStats after the rebuild.
var HookPosRebuild = &hooking.HookPos{Name: "Rebuild"}

// BucketStats describes the layout of a bucket queue.
type BucketStats struct {
	BucketCount int     `json:"bucket_count" yaml:"bucket_count"`
	Width       float64 `json:"width" yaml:"width"`
	Base        float64 `json:"base" yaml:"base"`
	Occupancy   float64 `json:"occupancy" yaml:"occupancy"`
	InBuckets   int     `json:"in_buckets" yaml:"in_buckets"`
	Overflow    int     `json:"overflow" yaml:"overflow"`
	Rebuilds    int     `json:"rebuilds" yaml:"rebuilds"`
}

// A StatsReporter exposes the bucket layout of a queue. CalendarQueue and
// TwoListQueue are StatsReporters. A Synchronized reports the layout of the
// queue it wraps, and ok is false when that queue has no buckets.
type StatsReporter interface {
	BucketStats() (stats BucketStats, ok bool)
}

type bucketConfig struct {
	bucketCount    int
	width          float64
	lower, upper   float64
	adaptiveCount  bool
	estimator      WidthEstimator
	capacity       int
	tieBreaker     TieBreaker
	overflowLinked bool

	// rebalanceOverflow rebuilds when the overflow outgrows the buckets.
	rebalanceOverflow bool
}

// bucketQueue is a ring of buckets covering [base, base+count*width) plus an
// overflow store for later entries.
//
// Bucket numbers are absolute: an entry at time t belongs to bucket
// floor((t-origin)/width), stored in slot number%count. Because the mapping
// is monotonic, all entries of a lower bucket number are earlier than all
// entries of a higher one. The horizon is the range of bucket numbers
// [cur, cur+count). Entries earlier than the horizon go to the current
// bucket and entries beyond it go to the overflow store. Overflow entries
// whose bucket number falls into the horizon are migrated each time the
// cursor wraps around the ring, before any slot behind the cursor is
// scanned again.
//
// Entries at +Inf have no bucket number. They wait in the end list, which
// is served only when the buckets and the overflow store are empty. The
// origin is always finite.
type bucketQueue[E any, T Time] struct {
	core[E, T]
	hooking.HookableBase

	buckets   [][]*entry[E, T]
	width     float64
	origin    float64
	cur       int64
	inBuckets int
	overflow  overflowStore[E, T]
	end       []*entry[E, T]

	minCount          int
	adaptiveCount     bool
	rebalanceOverflow bool
	lower, upper      float64
	estimator         WidthEstimator

	gaps            gapRecorder
	occupancy       float64
	opsSinceRebuild int
	rebuilds        int
	rebuilding      bool
}

func newBucketQueue[E any, T Time](c bucketConfig) *bucketQueue[E, T] {
	if c.bucketCount <= 0 {
		log.Panicf("eventqueue: bucket count must be positive, got %d",
			c.bucketCount)
	}

	if c.lower < 0 || c.upper <= c.lower {
		log.Panicf("eventqueue: invalid rebuild thresholds [%g, %g]",
			c.lower, c.upper)
	}

	if !usableWidth(c.width) {
		log.Panicf("eventqueue: bucket width must be positive, got %g",
			c.width)
	}

	if c.estimator == nil {
		c.estimator = GapEstimator{}
	}

	q := &bucketQueue[E, T]{
		core:              newCore[E, T](c.tieBreaker, c.capacity),
		buckets:           make([][]*entry[E, T], c.bucketCount),
		width:             c.width,
		minCount:          c.bucketCount,
		adaptiveCount:     c.adaptiveCount,
		rebalanceOverflow: c.rebalanceOverflow,
		lower:             c.lower,
		upper:             c.upper,
		estimator:         c.estimator,
	}

	if c.overflowLinked {
		q.overflow = newListOverflow[E, T]()
	} else {
		q.overflow = &sliceOverflow[E, T]{}
	}

	return q
}

// endSlot is the slot of the entries in the end list.
const endSlot = -2

func atEnd(t float64) bool {
	return math.IsInf(t, 1)
}

func (q *bucketQueue[E, T]) count() int64 {
	return int64(len(q.buckets))
}

func (q *bucketQueue[E, T]) base() float64 {
	return q.origin + float64(q.cur)*q.width
}

// bucketNumber returns the absolute bucket of e, clamped to the current
// bucket from below. The boolean is false if e is beyond the horizon.
func (q *bucketQueue[E, T]) bucketNumber(e *entry[E, T]) (int64, bool) {
	n := math.Floor((float64(e.time) - q.origin) / q.width)
	if math.IsNaN(n) {
		return 0, false
	}

	if n < float64(q.cur) {
		return q.cur, true
	}

	if n >= float64(q.cur+q.count()) {
		return 0, false
	}

	return int64(n), true
}

func (q *bucketQueue[E, T]) place(e *entry[E, T]) {
	if atEnd(float64(e.time)) {
		e.slot = endSlot
		e.index = len(q.end)
		q.end = append(q.end, e)

		return
	}

	n, inHorizon := q.bucketNumber(e)
	if !inHorizon {
		q.overflow.push(e)
		return
	}

	slot := int(n % q.count())
	e.slot = slot
	e.index = len(q.buckets[slot])
	q.buckets[slot] = append(q.buckets[slot], e)
	q.inBuckets++
}

func (q *bucketQueue[E, T]) unplace(e *entry[E, T]) {
	switch {
	case e.slot == endSlot:
		q.end = removeAt(q.end, e.index)
	case e.slot < 0:
		q.overflow.remove(e)
		return
	default:
		q.buckets[e.slot] = removeAt(q.buckets[e.slot], e.index)
		q.inBuckets--
	}

	e.slot = -1
	e.index = -1
}

func removeAt[E any, T Time](entries []*entry[E, T], i int) []*entry[E, T] {
	last := len(entries) - 1
	moved := entries[last]
	entries[i] = moved
	moved.index = i
	entries[last] = nil

	return entries[:last]
}

func (q *bucketQueue[E, T]) bucket(slot int) []*entry[E, T] {
	if slot == endSlot {
		return q.end
	}

	return q.buckets[slot]
}

func (q *bucketQueue[E, T]) isDue(e *entry[E, T]) bool {
	_, inHorizon := q.bucketNumber(e)
	return inHorizon
}

func (q *bucketQueue[E, T]) migrate() {
	q.overflow.migrate(q.isDue, q.place)
}

// jump moves the horizon to the earliest overflow entry. It is only called
// when every bucket is empty.
func (q *bucketQueue[E, T]) jump() {
	first := q.overflow.min()

	t := float64(first.time)
	if !math.IsInf(t, 0) && t > q.base() {
		q.origin = t
		q.cur = 0
	}

	q.migrate()
}

// locate advances the cursor to the first non-empty bucket and returns its
// slot, endSlot if only +Inf entries are left, or -1 if the queue is empty.
// It never changes the set of entries.
func (q *bucketQueue[E, T]) locate() int {
	if q.IsEmpty() {
		return -1
	}

	if q.inBuckets == 0 {
		if q.overflow.len() == 0 {
			return endSlot
		}

		q.jump()
	}

	for {
		slot := int(q.cur % q.count())
		if len(q.buckets[slot]) > 0 {
			return slot
		}

		q.cur++
		if q.cur%q.count() == 0 {
			q.migrate()
		}
	}
}

func (q *bucketQueue[E, T]) minIn(slot int) *entry[E, T] {
	var m *entry[E, T]
	for _, e := range q.bucket(slot) {
		if m == nil || less(e, m) {
			m = e
		}
	}

	return m
}

// Enqueue adds an event.
func (q *bucketQueue[E, T]) Enqueue(evt E, t T) Handle {
	e := q.newEntry(evt, t)
	q.place(e)
	q.afterOp()

	return e.handle()
}

// DequeueMin removes and returns the earliest event.
func (q *bucketQueue[E, T]) DequeueMin() (E, T, bool) {
	slot := q.locate()
	if slot == -1 {
		return zero[E, T]()
	}

	e := q.minIn(slot)
	q.take(e)
	q.afterOp()

	return e.event, e.time, true
}

// DequeueAllAtMin removes and returns all the events at the earliest time.
// Same-time entries always share a bucket, so only one bucket is visited.
func (q *bucketQueue[E, T]) DequeueAllAtMin() []Item[E, T] {
	slot := q.locate()
	if slot == -1 {
		return nil
	}

	minTime := q.minIn(slot).time

	var batch []*entry[E, T]
	for _, e := range q.bucket(slot) {
		if e.time == minTime {
			batch = append(batch, e)
		}
	}

	sort.Slice(batch, func(i, j int) bool { return less(batch[i], batch[j]) })

	items := make([]Item[E, T], 0, len(batch))
	for _, e := range batch {
		q.take(e)
		items = append(items, e.item())
	}

	q.afterOp()

	return items
}

func (q *bucketQueue[E, T]) take(e *entry[E, T]) {
	q.unplace(e)
	q.forget(e)
	q.gaps.record(float64(e.time))
}

// PeekMin returns the earliest time. It may move the internal cursor past
// empty buckets but never changes the contents of the queue.
func (q *bucketQueue[E, T]) PeekMin() (T, bool) {
	slot := q.locate()
	if slot == -1 {
		var t T
		return t, false
	}

	return q.minIn(slot).time, true
}

// Remove drops the entry identified by h.
func (q *bucketQueue[E, T]) Remove(h Handle) bool {
	e, ok := q.lookup(h)
	if !ok {
		return false
	}

	q.unplace(e)
	q.forget(e)
	q.afterOp()

	return true
}

// Reschedule moves the entry identified by h to time t.
func (q *bucketQueue[E, T]) Reschedule(h Handle, t T) (Handle, bool) {
	e, ok := q.lookup(h)
	if !ok {
		return h, false
	}

	q.unplace(e)
	q.forget(e)

	return q.Enqueue(e.event, t), true
}

func (q *bucketQueue[E, T]) afterOp() {
	sample := float64(q.inBuckets) / float64(len(q.buckets))
	q.occupancy += (sample - q.occupancy) * occupancySmoothing

	q.opsSinceRebuild++
	if q.opsSinceRebuild < q.rebuildInterval() {
		return
	}

	if q.needsRebuild() {
		q.Rebuild()
	}
}

func (q *bucketQueue[E, T]) rebuildInterval() int {
	interval := minRebuildInterval
	if q.Len() > interval {
		interval = q.Len()
	}

	if len(q.buckets) > interval {
		interval = len(q.buckets)
	}

	return interval
}

func (q *bucketQueue[E, T]) needsRebuild() bool {
	if q.occupancy > q.upper {
		return true
	}

	if q.rebalanceOverflow && q.overflow.len() > q.inBuckets {
		return true
	}

	return q.occupancy < q.lower && q.Len() > 0
}

// Rebuild recomputes the bucket width (and, for an adaptive queue, the
// bucket count) and redistributes every entry. The set of entries and the
// order in which they will be dequeued are unchanged.
func (q *bucketQueue[E, T]) Rebuild() {
	if q.rebuilding {
		log.Panic("eventqueue: nested rebuild")
	}
	q.rebuilding = true
	defer func() { q.rebuilding = false }()

	entries := q.drainAll()
	sample := q.sample(entries)

	if w := q.estimator.EstimateWidth(sample); usableWidth(w) {
		q.width = w
	}

	count := len(q.buckets)
	if q.adaptiveCount {
		count = nextPowerOfTwo(len(entries))
		if count < q.minCount {
			count = q.minCount
		}
	}

	base := q.base()
	if len(entries) > 0 && sample.MinTime > base {
		base = sample.MinTime
	}

	q.origin = base
	q.cur = 0
	q.buckets = make([][]*entry[E, T], count)

	for _, e := range entries {
		q.place(e)
	}

	q.rebuilds++
	q.opsSinceRebuild = 0
	q.occupancy = float64(q.inBuckets) / float64(count)

	stats := q.Stats()
	log.WithFields(log.Fields{
		"buckets":  stats.BucketCount,
		"width":    stats.Width,
		"base":     stats.Base,
		"overflow": stats.Overflow,
	}).Debug("eventqueue: rebuilt bucket layout")

	if q.NumHooks() > 0 {
		q.InvokeHook(hooking.HookCtx{
			Domain: q,
			Pos:    HookPosRebuild,
			Detail: stats,
		})
	}
}

func (q *bucketQueue[E, T]) drainAll() []*entry[E, T] {
	entries := make([]*entry[E, T], 0, q.Len())

	for i, bucket := range q.buckets {
		for _, e := range bucket {
			e.slot = -1
			e.index = -1
			entries = append(entries, e)
		}
		q.buckets[i] = nil
	}
	q.inBuckets = 0

	for _, e := range q.end {
		e.slot = -1
		e.index = -1
		entries = append(entries, e)
	}
	q.end = nil

	entries = append(entries, q.overflow.takeAll()...)

	return entries
}

func (q *bucketQueue[E, T]) sample(entries []*entry[E, T]) WidthSample {
	s := WidthSample{
		Gaps:    q.gaps.snapshot(),
		Count:   len(entries),
		Current: q.width,
	}

	first := true
	for _, e := range entries {
		t := float64(e.time)
		if math.IsInf(t, 0) {
			continue
		}

		if first || t < s.MinTime {
			s.MinTime = t
		}

		if first || t > s.MaxTime {
			s.MaxTime = t
		}
		first = false
	}

	return s
}

// BucketStats implements StatsReporter.
func (q *bucketQueue[E, T]) BucketStats() (BucketStats, bool) {
	return q.Stats(), true
}

// Stats returns the current layout of the queue.
func (q *bucketQueue[E, T]) Stats() BucketStats {
	return BucketStats{
		BucketCount: len(q.buckets),
		Width:       q.width,
		Base:        q.base(),
		Occupancy:   q.occupancy,
		InBuckets:   q.inBuckets,
		Overflow:    q.overflow.len() + len(q.end),
		Rebuilds:    q.rebuilds,
	}
}

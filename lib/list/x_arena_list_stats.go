package list

import (
	"context"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	XArenaListStatsName = "xlist/arena"

	opPushFront    = "push_front"
	opPushBack     = "push_back"
	opInsertBefore = "insert_before"
	opInsertAfter  = "insert_after"
	opRemove       = "remove"
)

// xArenaListStats carries the opt-in otel instruments of one list. All
// record methods are nil-receiver safe so the hot paths stay branch-cheap
// when stats are disabled.
type xArenaListStats struct {
	elementCount     metric.Int64UpDownCounter
	commitCount      metric.Int64Counter
	retryExhausted   metric.Int64Counter
	dirtyRepairs     metric.Int64Counter
	iterInvalidation metric.Int64Counter
}

func (stats *xArenaListStats) RecordElementDelta(delta int64) {
	if stats == nil {
		return
	}
	stats.elementCount.Add(context.Background(), delta)
}

func (stats *xArenaListStats) IncreaseCommit(op string) {
	if stats == nil {
		return
	}
	as := attribute.NewSet(attribute.String("xarena.op", op))
	stats.commitCount.Add(context.Background(), 1, metric.WithAttributeSet(as))
}

func (stats *xArenaListStats) IncreaseRetryExhausted(op string) {
	if stats == nil {
		return
	}
	as := attribute.NewSet(attribute.String("xarena.op", op))
	stats.retryExhausted.Add(context.Background(), 1, metric.WithAttributeSet(as))
}

// IncreaseDirtyRepair counts removals whose neighbor repair was abandoned,
// either because the neighbor was itself deleting or removed or because the
// retry budget ran out; the deletion itself is still committed.
func (stats *xArenaListStats) IncreaseDirtyRepair() {
	if stats == nil {
		return
	}
	stats.dirtyRepairs.Add(context.Background(), 1)
}

func (stats *xArenaListStats) IncreaseIterInvalidated() {
	if stats == nil {
		return
	}
	stats.iterInvalidation.Add(context.Background(), 1)
}

func newXArenaListStats(name string) *xArenaListStats {
	meterName := XArenaListStatsName
	if len(name) > 0 {
		meterName = meterName + "/" + name
	}
	return &xArenaListStats{
		elementCount: lo.Must[metric.Int64UpDownCounter](otel.Meter(meterName).
			Int64UpDownCounter(
				"xarena.element.count",
				metric.WithDescription("The number of elements linked in the arena list."),
			),
		),
		commitCount: lo.Must[metric.Int64Counter](otel.Meter(meterName).
			Int64Counter(
				"xarena.commit.count",
				metric.WithDescription("The number of committed mutations, by operation."),
			),
		),
		retryExhausted: lo.Must[metric.Int64Counter](otel.Meter(meterName).
			Int64Counter(
				"xarena.retry.exhausted.count",
				metric.WithDescription("The number of mutations abandoned after the retry budget, by operation."),
			),
		),
		dirtyRepairs: lo.Must[metric.Int64Counter](otel.Meter(meterName).
			Int64Counter(
				"xarena.remove.dirty.repair.count",
				metric.WithDescription("The number of committed removals whose neighbor repair was abandoned."),
			),
		),
		iterInvalidation: lo.Must[metric.Int64Counter](otel.Meter(meterName).
			Int64Counter(
				"xarena.iterator.invalidation.count",
				metric.WithDescription("The number of iterators invalidated after the self-healing budget."),
			),
		),
	}
}

package utils

import (
	"context"
	"sync/atomic"
	"testing"

	"go.viam.com/test"
)

func TestGroupWorkParallelCoversRange(t *testing.T) {
	for _, tc := range []struct {
		total, workers, groups int
	}{
		{10, 3, 3},
		{3, 8, 3},
		{1, 4, 1},
		{480, 7, 7},
		{5, 0, 1},
	} {
		seen := make([]int, tc.total)
		var groupsSeen int
		var done atomic.Int32
		err := GroupWorkParallelN(context.Background(), tc.total, tc.workers, func(numGroups int) {
			groupsSeen = numGroups
		}, func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
			test.That(t, to-from, test.ShouldEqual, groupSize)
			return func(memberNum, workNum int) {
				// ranges are disjoint so only one goroutine touches each slot
				seen[workNum]++
			}, func() {
				done.Add(1)
			}
		})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, groupsSeen, test.ShouldEqual, tc.groups)
		test.That(t, int(done.Load()), test.ShouldEqual, tc.groups)
		for _, count := range seen {
			test.That(t, count, test.ShouldEqual, 1)
		}
	}
}

func TestGroupWorkParallelEmpty(t *testing.T) {
	called := false
	err := GroupWorkParallel(context.Background(), 0, nil, func(_, _, _, _ int) (MemberWorkFunc, GroupWorkDoneFunc) {
		called = true
		return nil, nil
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, called, test.ShouldBeFalse)
}

func TestParallelForEachRowCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rows := make([]bool, 16)
	err := ParallelForEachRow(ctx, len(rows), 4, func(y int) { rows[y] = true })
	test.That(t, err, test.ShouldEqual, context.Canceled)
	for _, visited := range rows {
		test.That(t, visited, test.ShouldBeFalse)
	}

	err = ParallelForEachRow(context.Background(), len(rows), 4, func(y int) { rows[y] = true })
	test.That(t, err, test.ShouldBeNil)
	for _, visited := range rows {
		test.That(t, visited, test.ShouldBeTrue)
	}
}

func TestParallelForEachRowDefaultWorkers(t *testing.T) {
	prev := ParallelFactor
	ParallelFactor = 3
	defer func() { ParallelFactor = prev }()

	var visits atomic.Int32
	rows := make([]int32, 10)
	err := ParallelForEachRow(context.Background(), len(rows), 0, func(y int) {
		rows[y]++
		visits.Add(1)
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, int(visits.Load()), test.ShouldEqual, len(rows))
	for _, count := range rows {
		test.That(t, count, test.ShouldEqual, int32(1))
	}
}

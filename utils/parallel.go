// Package utils holds small concurrency helpers shared by the image and filter packages.
package utils

import (
	"context"
	"runtime"
	"sync"

	"go.viam.com/utils"
)

// ParallelFactor is the worker count used when none is given. Tests may lower it.
var ParallelFactor = max(runtime.GOMAXPROCS(0), 1)

type (
	// BeforeParallelGroupWorkFunc is told the group count before any group starts.
	BeforeParallelGroupWorkFunc func(numGroups int)
	// MemberWorkFunc handles one index of a group's range.
	MemberWorkFunc func(memberNum, workNum int)
	// GroupWorkDoneFunc runs after a group has handled its whole range.
	GroupWorkDoneFunc func()
	// GroupWorkFunc is called once per group with its range [from, to) and returns what to run
	// per index and on completion. Either may be nil.
	GroupWorkFunc func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc)
)

// GroupWorkParallel is GroupWorkParallelN with ParallelFactor workers.
func GroupWorkParallel(ctx context.Context, totalSize int, before BeforeParallelGroupWorkFunc, groupWork GroupWorkFunc) error {
	return GroupWorkParallelN(ctx, totalSize, ParallelFactor, before, groupWork)
}

// GroupWorkParallelN splits [0, totalSize) into min(workers, totalSize) contiguous ranges and
// runs each on its own goroutine, the last range taking the remainder. Groups that have not
// started when ctx is cancelled are skipped and the context error is returned.
func GroupWorkParallelN(
	ctx context.Context,
	totalSize, workers int,
	before BeforeParallelGroupWorkFunc,
	groupWork GroupWorkFunc,
) error {
	if totalSize <= 0 {
		return nil
	}
	numGroups := min(max(workers, 1), totalSize)
	span := totalSize / numGroups
	if before != nil {
		before(numGroups)
	}

	var wg sync.WaitGroup
	wg.Add(numGroups)
	for g := 0; g < numGroups; g++ {
		from, to := g*span, (g+1)*span
		if g == numGroups-1 {
			to = totalSize
		}
		utils.PanicCapturingGo(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			perIndex, done := groupWork(g, to-from, from, to)
			if perIndex != nil {
				for i := from; i < to; i++ {
					perIndex(i-from, i)
				}
			}
			if done != nil {
				done()
			}
		})
	}
	wg.Wait()
	return ctx.Err()
}

// ParallelForEachRow calls f once for every y in [0, height) across up to workers goroutines,
// or ParallelFactor of them when workers is not positive.
func ParallelForEachRow(ctx context.Context, height, workers int, f func(y int)) error {
	perRow := func(_, _, _, _ int) (MemberWorkFunc, GroupWorkDoneFunc) {
		return func(_, y int) { f(y) }, nil
	}
	if workers <= 0 {
		return GroupWorkParallel(ctx, height, nil, perRow)
	}
	return GroupWorkParallelN(ctx, height, workers, nil, perRow)
}

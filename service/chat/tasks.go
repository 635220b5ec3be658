package chat

import (
	"sync"
	"time"

	"MTalk/logger"
)

// TaskQueue 单 worker 的后台队列，任务按提交顺序执行。
// 承接不必卡住读循环的收尾工作（联系人维护、归档、延时通知）。
type TaskQueue struct {
	ch      chan func()
	quit    chan struct{}
	wg      sync.WaitGroup
	stopOne sync.Once
}

func NewTaskQueue(size int) *TaskQueue {
	if size <= 0 {
		size = 1024
	}
	q := &TaskQueue{
		ch:   make(chan func(), size),
		quit: make(chan struct{}),
	}
	q.wg.Add(1)
	go q.loop()
	return q
}

func (q *TaskQueue) loop() {
	defer q.wg.Done()
	for {
		select {
		case f := <-q.ch:
			q.run(f)
		case <-q.quit:
			// 收尾：把已入队的跑完
			for {
				select {
				case f := <-q.ch:
					q.run(f)
				default:
					return
				}
			}
		}
	}
}

func (q *TaskQueue) run(f func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[Task] panic recovered: %v", r)
		}
	}()
	f()
}

// Submit 入队。队列满或已关闭时丢弃并记日志。
func (q *TaskQueue) Submit(f func()) {
	select {
	case <-q.quit:
		logger.Warn("[Task] queue closed, task dropped")
	case q.ch <- f:
	default:
		logger.Warn("[Task] queue full, task dropped")
	}
}

// SubmitAfter 延时入队
func (q *TaskQueue) SubmitAfter(d time.Duration, f func()) *time.Timer {
	return time.AfterFunc(d, func() { q.Submit(f) })
}

func (q *TaskQueue) Close() {
	q.stopOne.Do(func() {
		close(q.quit)
	})
	q.wg.Wait()
}

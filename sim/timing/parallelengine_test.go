package timing

import (
	"errors"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/eventq/sim/eventqueue"
	"github.com/sarchlab/eventq/sim/hooking"
)

var _ = Describe("ParallelEngine", func() {
	var engine *ParallelEngine

	BeforeEach(func() {
		engine = MakeBuilder().
			WithParallelism(4).
			WithFrontSize(2).
			BuildParallelEngine()
	})

	It("should handle every event and the events they schedule", func() {
		var count atomic.Int64
		var handles sync.Map

		var h Handler
		h = HandlerFunc(func(e Event) error {
			count.Add(1)

			if e.Time() == 1 {
				handle := engine.Schedule(NewEventBase(3, h))
				handles.Store(handle, true)
			}

			return nil
		})

		for i := 0; i < 10; i++ {
			engine.Schedule(NewEventBase(1, h))
		}
		for i := 0; i < 5; i++ {
			engine.Schedule(NewEventBase(2, h))
		}

		Expect(engine.Run()).To(Succeed())
		Expect(count.Load()).To(Equal(int64(25)))
		Expect(engine.Now()).To(Equal(3.0))

		distinct := 0
		handles.Range(func(k, _ any) bool {
			Expect(k.(EventHandle).IsZero()).To(BeFalse())
			distinct++
			return true
		})
		Expect(distinct).To(Equal(10))
	})

	It("should run a batch before the events it schedules at the same time", func() {
		var lock sync.Mutex
		var order []string

		record := func(name string) Handler {
			return HandlerFunc(func(Event) error {
				lock.Lock()
				order = append(order, name)
				lock.Unlock()

				return nil
			})
		}

		var first Handler
		first = HandlerFunc(func(e Event) error {
			engine.Schedule(NewSecondaryEventBase(e.Time(), record("secondary")))
			engine.Schedule(NewEventBase(e.Time(), record("follow-up")))

			return record("first").Handle(e)
		})

		engine.Schedule(NewEventBase(1, first))
		engine.Schedule(NewEventBase(1, first))

		Expect(engine.Run()).To(Succeed())
		Expect(order).To(Equal([]string{
			"first", "first",
			"follow-up", "follow-up",
			"secondary", "secondary",
		}))
	})

	It("should accept events from other goroutines while running", func() {
		var count atomic.Int64

		var chain Handler
		chain = HandlerFunc(func(e Event) error {
			count.Add(1)
			if e.Time() < 200 {
				engine.Schedule(NewEventBase(e.Time()+1, chain))
			}

			return nil
		})
		engine.Schedule(NewEventBase(1, chain))

		counted := HandlerFunc(func(Event) error {
			count.Add(1)
			return nil
		})

		var producers sync.WaitGroup
		for p := 0; p < 4; p++ {
			producers.Add(1)
			go func() {
				defer GinkgoRecover()
				defer producers.Done()

				for i := 0; i < 100; i++ {
					engine.Schedule(NewEventBase(500, counted))
				}
			}()
		}

		Expect(engine.Run()).To(Succeed())
		producers.Wait()
		Expect(engine.Run()).To(Succeed())

		Expect(count.Load()).To(Equal(int64(600)))
		Expect(engine.Now()).To(Equal(VTimeInSec(500)))
	})

	It("should reproduce the follow-up order with one worker", func() {
		run := func() []string {
			engine := MakeBuilder().WithParallelism(1).BuildParallelEngine()

			var order []string
			record := func(name string) Handler {
				return HandlerFunc(func(Event) error {
					order = append(order, name)
					return nil
				})
			}

			spawn := func(name string) Handler {
				return HandlerFunc(func(e Event) error {
					for i := 1; i <= 3; i++ {
						engine.Schedule(NewEventBase(2,
							record(name+"-"+string(rune('0'+i)))))
					}

					return nil
				})
			}

			engine.Schedule(NewEventBase(1, spawn("a")))
			engine.Schedule(NewEventBase(1, spawn("b")))

			Expect(engine.Run()).To(Succeed())

			return order
		}

		first := run()
		Expect(first).To(Equal([]string{
			"a-1", "a-2", "a-3", "b-1", "b-2", "b-3",
		}))
		Expect(run()).To(Equal(first))
	})

	It("should never run more workers than allowed", func() {
		var running, peak atomic.Int64

		h := HandlerFunc(func(Event) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			running.Add(-1)

			return nil
		})

		for i := 0; i < 64; i++ {
			engine.Schedule(NewEventBase(1, h))
		}

		Expect(engine.Run()).To(Succeed())
		Expect(peak.Load()).To(BeNumerically("<=", 4))
	})

	It("should invoke hooks", func() {
		counter := hooking.NewPosCounter()
		engine.AcceptHook(counter)

		h := HandlerFunc(func(Event) error { return nil })
		for i := 0; i < 8; i++ {
			engine.Schedule(NewEventBase(VTimeInSec(i%2), h))
		}

		Expect(engine.Run()).To(Succeed())
		Expect(counter.Count(HookPosBeforeEvent)).To(Equal(uint64(8)))
		Expect(counter.Count(HookPosAfterEvent)).To(Equal(uint64(8)))
	})

	It("should collect handler errors", func() {
		h := HandlerFunc(func(Event) error { return errors.New("boom") })
		engine.Schedule(NewEventBase(1, h))
		engine.Schedule(NewEventBase(1, h))

		err := engine.Run()
		Expect(err).To(MatchError(ContainSubstring("boom")))
		Expect(engine.Run()).To(Succeed())
	})

	It("should work with a bucket queue", func() {
		engine = MakeBuilder().
			WithQueueBuilder(eventqueue.MakeBuilder().
				WithStrategy(eventqueue.StrategyTwoList)).
			BuildParallelEngine()

		var count atomic.Int64
		var h Handler
		h = HandlerFunc(func(e Event) error {
			if count.Add(1) < 200 {
				engine.Schedule(NewEventBase(e.Time()+0.5, h))
			}

			return nil
		})
		engine.Schedule(NewEventBase(0, h))

		Expect(engine.Run()).To(Succeed())
		Expect(count.Load()).To(Equal(int64(200)))
	})
})

package timing

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/eventq/sim/eventqueue"
	"github.com/sarchlab/eventq/sim/hooking"
)

type recordingHandler struct {
	handled []VTimeInSec
	onEvent func(e Event) error
}

func (h *recordingHandler) Handle(e Event) error {
	h.handled = append(h.handled, e.Time())

	if h.onEvent != nil {
		return h.onEvent(e)
	}

	return nil
}

var _ = Describe("SerialEngine", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *SerialEngine
		handler  *recordingHandler
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewSerialEngine()
		handler = &recordingHandler{}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should handle events in time order", func() {
		mockHandler := NewMockHandler(mockCtrl)

		for _, t := range []VTimeInSec{3, 1, 2} {
			evt := NewMockEvent(mockCtrl)
			evt.EXPECT().Time().Return(t).AnyTimes()
			evt.EXPECT().IsSecondary().Return(false).AnyTimes()
			evt.EXPECT().Handler().Return(mockHandler).AnyTimes()
			engine.Schedule(evt)
		}

		var times []VTimeInSec
		mockHandler.EXPECT().
			Handle(gomock.Any()).
			DoAndReturn(func(e Event) error {
				times = append(times, e.Time())
				return nil
			}).
			Times(3)

		Expect(engine.Run()).To(Succeed())
		Expect(times).To(Equal([]VTimeInSec{1, 2, 3}))
		Expect(engine.Now()).To(Equal(3.0))
	})

	It("should handle secondary events after same-time primary events", func() {
		var order []string
		primary := HandlerFunc(func(Event) error {
			order = append(order, "primary")
			return nil
		})
		secondary := HandlerFunc(func(Event) error {
			order = append(order, "secondary")
			return nil
		})

		engine.Schedule(NewSecondaryEventBase(1, secondary))
		engine.Schedule(NewEventBase(1, primary))
		engine.Schedule(NewEventBase(2, primary))

		Expect(engine.Run()).To(Succeed())
		Expect(order).To(Equal([]string{"primary", "secondary", "primary"}))
	})

	It("should invoke hooks around every event", func() {
		counter := hooking.NewPosCounter()
		engine.AcceptHook(counter)

		engine.Schedule(NewEventBase(1, handler))
		engine.Schedule(NewEventBase(2, handler))

		Expect(engine.Run()).To(Succeed())
		Expect(counter.Count(HookPosBeforeEvent)).To(Equal(uint64(2)))
		Expect(counter.Count(HookPosAfterEvent)).To(Equal(uint64(2)))
	})

	It("should panic when scheduling in the past", func() {
		handler.onEvent = func(e Event) error {
			engine.Schedule(NewEventBase(e.Time()-1, handler))
			return nil
		}
		engine.Schedule(NewEventBase(5, handler))

		Expect(func() { _ = engine.Run() }).To(Panic())
	})

	It("should cancel events", func() {
		engine.Schedule(NewEventBase(1, handler))
		h := engine.Schedule(NewEventBase(2, handler))
		s := engine.Schedule(NewSecondaryEventBase(3, handler))

		Expect(h.IsZero()).To(BeFalse())
		Expect(engine.Cancel(h)).To(BeTrue())
		Expect(engine.Cancel(h)).To(BeFalse())
		Expect(engine.Cancel(s)).To(BeTrue())

		Expect(engine.Run()).To(Succeed())
		Expect(handler.handled).To(Equal([]VTimeInSec{1}))
	})

	It("should not cancel handled events", func() {
		h := engine.Schedule(NewEventBase(1, handler))

		Expect(engine.Run()).To(Succeed())
		Expect(engine.Cancel(h)).To(BeFalse())
	})

	It("should reschedule events", func() {
		var at []VTimeInSec
		h := HandlerFunc(func(Event) error {
			at = append(at, engine.Now())
			return nil
		})

		first := engine.Schedule(NewEventBase(1, h))
		engine.Schedule(NewEventBase(2, h))

		moved, ok := engine.Reschedule(first, 4)
		Expect(ok).To(BeTrue())
		Expect(moved).NotTo(Equal(first))

		_, ok = engine.Reschedule(first, 5)
		Expect(ok).To(BeFalse())

		Expect(engine.Run()).To(Succeed())
		Expect(at).To(Equal([]VTimeInSec{2, 4}))
	})

	It("should return the errors of all the handlers", func() {
		handler.onEvent = func(e Event) error {
			if e.Time() == 2 {
				return nil
			}

			return errors.New("boom")
		}

		for _, t := range []VTimeInSec{1, 2, 3} {
			engine.Schedule(NewEventBase(t, handler))
		}

		err := engine.Run()
		Expect(err).To(HaveOccurred())
		Expect(handler.handled).To(HaveLen(3))

		var merr *multierror.Error
		Expect(errors.As(err, &merr)).To(BeTrue())
		Expect(merr.Errors).To(HaveLen(2))

		Expect(engine.Run()).To(Succeed())
	})

	It("should use the configured queues", func() {
		engine = MakeBuilder().
			WithQueueBuilder(eventqueue.MakeBuilder().
				WithStrategy(eventqueue.StrategyCalendar)).
			BuildSerialEngine()

		for i := 0; i < 100; i++ {
			engine.Schedule(NewEventBase(VTimeInSec(100-i), handler))
		}

		Expect(engine.Run()).To(Succeed())
		Expect(handler.handled).To(HaveLen(100))
		for i := 1; i < len(handler.handled); i++ {
			Expect(handler.handled[i]).To(BeNumerically(">", handler.handled[i-1]))
		}
	})

	Context("when serving", func() {
		It("should handle injected events until shut down", func() {
			handled := make(chan VTimeInSec, 10)
			h := HandlerFunc(func(e Event) error {
				handled <- e.Time()
				return nil
			})

			served := make(chan error)
			go func() {
				served <- engine.Serve(context.Background())
			}()

			_, err := engine.Inject(NewEventBase(1, h))
			Expect(err).NotTo(HaveOccurred())
			Eventually(handled).Should(Receive(Equal(1.0)))

			_, err = engine.Inject(NewEventBase(2, h))
			Expect(err).NotTo(HaveOccurred())
			Eventually(handled).Should(Receive(Equal(2.0)))

			engine.Shutdown()
			Eventually(served).Should(Receive(BeNil()))
		})

		It("should stop when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())

			served := make(chan error)
			go func() {
				served <- engine.Serve(ctx)
			}()

			Consistently(served, 20*time.Millisecond).ShouldNot(Receive())

			cancel()

			var err error
			Eventually(served).Should(Receive(&err))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})

		It("should reject injected events in the past", func() {
			engine.Schedule(NewEventBase(5, handler))
			Expect(engine.Run()).To(Succeed())

			_, err := engine.Inject(NewEventBase(1, handler))
			Expect(errors.Is(err, ErrEventInPast)).To(BeTrue())
		})

		It("should reject injected secondary events", func() {
			_, err := engine.Inject(NewSecondaryEventBase(1, handler))
			Expect(err).To(HaveOccurred())
		})
	})
})

package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("HookableBase", func() {
	var (
		base *HookableBase
		pos  *HookPos
	)

	BeforeEach(func() {
		base = &HookableBase{}
		pos = &HookPos{Name: "Test"}
	})

	It("should invoke hooks in registration order", func() {
		var calls []string

		base.AcceptHook(HookFunc(func(ctx HookCtx) {
			calls = append(calls, "first:"+ctx.Pos.Name)
		}))
		base.AcceptHook(HookFunc(func(ctx HookCtx) {
			calls = append(calls, "second:"+ctx.Pos.Name)
		}))

		base.InvokeHook(HookCtx{Domain: base, Pos: pos})

		Expect(base.NumHooks()).To(Equal(2))
		Expect(calls).To(Equal([]string{"first:Test", "second:Test"}))
	})

	It("should panic on duplicated hooks", func() {
		counter := NewPosCounter()
		base.AcceptHook(counter)

		Expect(func() { base.AcceptHook(counter) }).To(Panic())
	})

	It("should count positions", func() {
		counter := NewPosCounter()
		other := &HookPos{Name: "Other"}
		base.AcceptHook(counter)

		base.InvokeHook(HookCtx{Pos: pos})
		base.InvokeHook(HookCtx{Pos: pos})
		base.InvokeHook(HookCtx{Pos: other})
		base.InvokeHook(HookCtx{})

		Expect(counter.Count(pos)).To(Equal(uint64(2)))
		Expect(counter.Snapshot()).To(Equal(map[string]uint64{
			"Test":  2,
			"Other": 1,
		}))
	})
})

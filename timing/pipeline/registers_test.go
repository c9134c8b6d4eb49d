package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ropuf/entropy"
	"github.com/sarchlab/ropuf/timing/pipeline"
)

var _ = Describe("Accumulator", func() {
	var acc *pipeline.Accumulator

	BeforeEach(func() {
		acc = pipeline.NewAccumulator(4)
	})

	It("should start empty", func() {
		Expect(acc.Width()).To(Equal(uint(4)))
		Expect(acc.Count()).To(Equal(uint(0)))
		Expect(acc.IsFull()).To(BeFalse())
		Expect(acc.Value()).To(Equal(uint64(0)))
	})

	It("should be full after exactly width appends", func() {
		for i := 0; i < 3; i++ {
			Expect(acc.Append(true)).To(BeTrue())
			Expect(acc.IsFull()).To(BeFalse())
		}
		Expect(acc.Append(false)).To(BeTrue())
		Expect(acc.IsFull()).To(BeTrue())
		Expect(acc.Count()).To(Equal(uint(4)))
	})

	It("should place the i-th bit at position width-1-i", func() {
		for i := 0; i < 4; i++ {
			acc.Reset()
			for k := 0; k < 4; k++ {
				acc.Append(k == i)
			}
			Expect(acc.Value()).To(Equal(uint64(1) << (3 - i)))
		}
	})

	It("should fill from the most significant position", func() {
		acc.Append(true)
		acc.Append(false)
		Expect(acc.Value()).To(Equal(uint64(0b1000)))
		acc.Append(true)
		acc.Append(true)
		Expect(acc.Value()).To(Equal(uint64(0b1011)))
	})

	It("should ignore appends when full", func() {
		for i := 0; i < 4; i++ {
			acc.Append(false)
		}
		Expect(acc.Append(true)).To(BeFalse())
		Expect(acc.Value()).To(Equal(uint64(0)))
		Expect(acc.Count()).To(Equal(uint(4)))
	})

	It("should return to empty on reset at any fill level", func() {
		for level := 0; level <= 4; level++ {
			acc.Reset()
			for i := 0; i < level; i++ {
				acc.Append(true)
			}
			acc.Reset()
			Expect(acc.Count()).To(Equal(uint(0)))
			Expect(acc.IsFull()).To(BeFalse())
			Expect(acc.Value()).To(Equal(uint64(0)))
		}
	})
})

var _ = Describe("OutputLatch", func() {
	var latch *pipeline.OutputLatch

	BeforeEach(func() {
		latch = &pipeline.OutputLatch{}
	})

	It("should capture on the rising edge of the enable", func() {
		latch.Observe(false, 0b11)
		Expect(latch.Ready()).To(BeFalse())
		Expect(latch.Response()).To(Equal(uint64(0)))

		latch.Observe(true, 0b101)
		Expect(latch.Ready()).To(BeTrue())
		Expect(latch.Captured()).To(BeTrue())
		Expect(latch.Response()).To(Equal(uint64(0b101)))
	})

	It("should capture once per pulse regardless of its width", func() {
		latch.Observe(true, 1)
		latch.Observe(true, 2)
		latch.Observe(true, 3)
		Expect(latch.Response()).To(Equal(uint64(1)))
		Expect(latch.Captures()).To(Equal(uint64(1)))
		Expect(latch.Captured()).To(BeFalse())
		Expect(latch.Ready()).To(BeTrue())

		latch.Observe(false, 4)
		Expect(latch.Ready()).To(BeFalse())
		Expect(latch.Response()).To(Equal(uint64(1)))

		latch.Observe(true, 5)
		Expect(latch.Response()).To(Equal(uint64(5)))
		Expect(latch.Captures()).To(Equal(uint64(2)))
	})

	It("should clear on reset", func() {
		latch.Observe(true, 7)
		latch.Reset()
		Expect(latch.Ready()).To(BeFalse())
		Expect(latch.Response()).To(Equal(uint64(0)))
		Expect(latch.Captures()).To(Equal(uint64(0)))

		latch.Observe(true, 9)
		Expect(latch.Response()).To(Equal(uint64(9)))
	})
})

var _ = Describe("Signal Registers", func() {
	It("should latch the winner bit only with ready", func() {
		var r pipeline.StepRegister
		r.Latch(entropy.Bits(1), true)
		Expect(r.Ready).To(BeTrue())
		Expect(r.Bit).To(BeTrue())

		r.Latch(entropy.Bits(1), false)
		Expect(r.Ready).To(BeFalse())
		Expect(r.Bit).To(BeFalse())
	})

	It("should clear the seed register", func() {
		r := pipeline.SeedRegister{Ready: true, Value: 5}
		r.Clear()
		Expect(r).To(Equal(pipeline.SeedRegister{}))
	})
})

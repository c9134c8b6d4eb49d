package enroll_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ropuf/enroll"
	"github.com/sarchlab/ropuf/timing/pipeline"
)

var _ = Describe("Store", func() {
	var store *enroll.Store

	BeforeEach(func() {
		var err error
		store, err = enroll.New(enroll.Config{Sets: 4, Ways: 2})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should reject an empty geometry", func() {
		_, err := enroll.New(enroll.Config{Sets: 0, Ways: 2})
		Expect(err).To(MatchError(enroll.ErrInvalidConfig))
	})

	It("should report the default capacity", func() {
		Expect(enroll.DefaultConfig().Capacity()).To(Equal(256))
	})

	It("should miss on an empty store", func() {
		_, ok := store.Lookup(enroll.Challenge{Epoch: 1, Index: 0})
		Expect(ok).To(BeFalse())
		Expect(store.Stats().Misses).To(Equal(uint64(1)))
		Expect(store.Len()).To(BeZero())
	})

	It("should return an enrolled response", func() {
		ch := enroll.Challenge{Epoch: 1, Index: 3}
		_, evicted := store.Enroll(ch, 0xBEEF)
		Expect(evicted).To(BeFalse())

		resp, ok := store.Lookup(ch)
		Expect(ok).To(BeTrue())
		Expect(resp).To(Equal(uint64(0xBEEF)))
		Expect(store.Len()).To(Equal(1))
	})

	It("should keep epochs apart", func() {
		store.Enroll(enroll.Challenge{Epoch: 1, Index: 0}, 0x1)
		store.Enroll(enroll.Challenge{Epoch: 2, Index: 0}, 0x2)

		resp, ok := store.Lookup(enroll.Challenge{Epoch: 1, Index: 0})
		Expect(ok).To(BeTrue())
		Expect(resp).To(Equal(uint64(0x1)))
	})

	It("should replace an earlier enrollment of the same challenge", func() {
		ch := enroll.Challenge{Epoch: 1, Index: 0}
		store.Enroll(ch, 0x1)
		store.Enroll(ch, 0x2)

		resp, _ := store.Lookup(ch)
		Expect(resp).To(Equal(uint64(0x2)))
		Expect(store.Len()).To(Equal(1))
	})

	Context("when a set is full", func() {
		// Indices 0, 4 and 8 share set 0.
		a := enroll.Challenge{Epoch: 1, Index: 0}
		b := enroll.Challenge{Epoch: 1, Index: 4}
		c := enroll.Challenge{Epoch: 1, Index: 8}

		BeforeEach(func() {
			store.Enroll(a, 0xA)
			store.Enroll(b, 0xB)
		})

		It("should evict the least recently used enrollment", func() {
			victim, evicted := store.Enroll(c, 0xC)
			Expect(evicted).To(BeTrue())
			Expect(victim).To(Equal(a))

			_, ok := store.Lookup(a)
			Expect(ok).To(BeFalse())
			Expect(store.Stats().Evictions).To(Equal(uint64(1)))
		})

		It("should refresh an enrollment on lookup", func() {
			store.Lookup(a)

			victim, evicted := store.Enroll(c, 0xC)
			Expect(evicted).To(BeTrue())
			Expect(victim).To(Equal(b))
		})
	})

	Describe("Verify", func() {
		ch := enroll.Challenge{Epoch: 3, Index: 1}

		BeforeEach(func() {
			store.Enroll(ch, 0b1010_1010)
		})

		It("should accept an exact match", func() {
			Expect(store.Verify(ch, 0b1010_1010, 0)).To(Equal(enroll.Result{
				Found:    true,
				Distance: 0,
				Accepted: true,
			}))
		})

		It("should accept a response within the threshold", func() {
			r := store.Verify(ch, 0b1010_1001, 2)
			Expect(r.Distance).To(Equal(2))
			Expect(r.Accepted).To(BeTrue())
		})

		It("should reject a response beyond the threshold", func() {
			r := store.Verify(ch, 0b0101_0101, 2)
			Expect(r.Found).To(BeTrue())
			Expect(r.Distance).To(Equal(8))
			Expect(r.Accepted).To(BeFalse())
		})

		It("should reject an unknown challenge", func() {
			Expect(store.Verify(enroll.Challenge{Epoch: 9}, 0, 64)).To(Equal(enroll.Result{}))
		})

		It("should count outcomes", func() {
			store.Verify(ch, 0b1010_1010, 0)
			store.Verify(ch, 0, 0)

			stats := store.Stats()
			Expect(stats.Accepts).To(Equal(uint64(1)))
			Expect(stats.Rejects).To(Equal(uint64(1)))
		})
	})

	It("should invalidate an enrollment", func() {
		ch := enroll.Challenge{Epoch: 1, Index: 1}
		store.Enroll(ch, 0x7)

		Expect(store.Invalidate(ch)).To(BeTrue())
		Expect(store.Invalidate(ch)).To(BeFalse())

		_, ok := store.Lookup(ch)
		Expect(ok).To(BeFalse())
	})

	It("should record pipeline responses", func() {
		store.Record(pipeline.Response{Value: 0x5, Cycle: 13, Epoch: 1, Index: 2})

		resp, ok := store.Lookup(enroll.Challenge{Epoch: 1, Index: 2})
		Expect(ok).To(BeTrue())
		Expect(resp).To(Equal(uint64(0x5)))
	})

	It("should clear everything on reset", func() {
		store.Enroll(enroll.Challenge{Epoch: 1}, 0x1)
		store.Reset()

		Expect(store.Len()).To(BeZero())
		Expect(store.Stats()).To(Equal(enroll.Statistics{}))
	})
})

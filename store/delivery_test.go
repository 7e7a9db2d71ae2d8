package store

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Delivery", func() {
	var state *delivery
	var seen []Snapshot

	BeforeEach(func() {
		state = &delivery{}
		seen = nil
	})

	record := func(snapshot Snapshot) {
		seen = append(seen, snapshot)
	}

	It("drops a result set staler than one already delivered", func() {
		stale := state.next()
		fresh := state.next()

		Expect(state.push(fresh, record, Snapshot{{ID: "a"}, {ID: "b"}})).To(BeNil())
		Expect(state.push(stale, record, Snapshot{{ID: "a"}})).To(BeNil())

		Expect(seen).To(HaveLen(1))
		Expect(seen[0]).To(HaveLen(2))
	})

	It("skips redelivery of an unchanged result set", func() {
		snapshot := Snapshot{{ID: "a"}}
		Expect(state.push(state.next(), record, snapshot)).To(BeNil())
		Expect(state.push(state.next(), record, snapshot)).To(BeNil())

		Expect(seen).To(HaveLen(1))
	})

	It("returns the recovered value of a panicking callback", func() {
		reason := state.push(state.next(), func(Snapshot) { panic("boom") }, Snapshot{})
		Expect(reason).To(Equal("boom"))

		Expect(state.push(state.next(), record, Snapshot{{ID: "a"}})).To(BeNil())
		Expect(seen).To(HaveLen(1))
	})
})

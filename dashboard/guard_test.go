package dashboard

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/medipass/hospital-worker/store"
)

var _ = Describe("Feed guard", func() {
	var dashboardStore *Store

	BeforeEach(func() {
		dashboardStore = New(Params{
			Store:  store.NewMemoryStore(),
			Logger: zap.NewNop().Sugar(),
		})
	})

	It("surfaces a panicking feed handler through the store error", func() {
		handle := dashboardStore.guarded(func(store.Snapshot) { panic("boom") })
		Expect(func() { handle(store.Snapshot{}) }).ToNot(Panic())
		Expect(dashboardStore.Err()).To(MatchError(ContainSubstring("boom")))
	})

	It("keeps the healthy feeds applying after a panic", func() {
		dashboardStore.guarded(func(store.Snapshot) { panic("boom") })(store.Snapshot{})
		dashboardStore.guarded(dashboardStore.handleCards)(store.Snapshot{})

		Expect(dashboardStore.Err()).ToNot(HaveOccurred())
	})
})

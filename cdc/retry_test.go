package cdc_test

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/Shopify/sarama"
	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/medipass/hospital-worker/cdc"
	cdctest "github.com/medipass/hospital-worker/cdc/test"
)

var _ = Describe("RetryingHandler", func() {
	var ctrl *gomock.Controller
	var delegate *cdctest.MockMessageHandler
	var message *sarama.ConsumerMessage

	BeforeEach(func() {
		cdc.DefaultAttempts = 3
		cdc.DefaultDelay = time.Millisecond

		ctrl = gomock.NewController(GinkgoT())
		delegate = cdctest.NewMockMessageHandler(ctrl)
		message = &sarama.ConsumerMessage{Topic: "hospital.users", Offset: 42}
	})

	AfterEach(func() {
		ctrl.Finish()
	})

	It("passes the message through on success", func() {
		delegate.EXPECT().HandleMessage(gomock.Eq(message)).Return(nil)

		handler := cdc.NewRetryingHandler(delegate)
		Expect(handler.HandleMessage(message)).To(Succeed())
	})

	It("retries until the delegate succeeds", func() {
		gomock.InOrder(
			delegate.EXPECT().HandleMessage(gomock.Eq(message)).Return(errors.New("transient")),
			delegate.EXPECT().HandleMessage(gomock.Eq(message)).Return(nil),
		)

		handler := cdc.NewRetryingHandler(delegate)
		Expect(handler.HandleMessage(message)).To(Succeed())
	})

	It("gives up after the attempt budget is exhausted", func() {
		delegate.EXPECT().HandleMessage(gomock.Eq(message)).Return(errors.New("permanent")).Times(3)

		handler := cdc.NewRetryingHandler(delegate)
		Expect(handler.HandleMessage(message)).To(HaveOccurred())
	})
})

var _ = Describe("Event", func() {
	type body struct {
		Name string `json:"name"`
	}

	It("unmarshals an insert event", func() {
		payload := []byte(`{"operationType":"insert","documentKey":{"_id":"abc"},"fullDocument":{"name":"General"}}`)

		event := cdc.Event[body]{}
		Expect(json.Unmarshal(payload, &event)).To(Succeed())
		Expect(event.OperationType).To(Equal(cdc.OperationTypeInsert))
		Expect(event.DocumentKey.ID).To(Equal("abc"))
		Expect(event.FullDocument).ToNot(BeNil())
		Expect(event.FullDocument.Name).To(Equal("General"))
	})

	It("unmarshals an update event without a full document", func() {
		payload := []byte(`{"operationType":"update","documentKey":{"_id":"abc"},"updateDescription":{"updatedFields":{"name":"Central"},"removedFields":["phone"]}}`)

		event := cdc.Event[body]{}
		Expect(json.Unmarshal(payload, &event)).To(Succeed())
		Expect(event.FullDocument).To(BeNil())
		Expect(event.UpdateDescription.UpdatedFields.Name).To(Equal("Central"))
		Expect(event.UpdateDescription.RemovedFields).To(ConsistOf("phone"))
	})
})

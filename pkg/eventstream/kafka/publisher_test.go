package kafka

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/groundedhq/grounded/pkg/eventstream"
)

func TestKafkaPublisher(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Kafka Publisher Suite")
}

var _ = Describe("NewPublisher", func() {
	It("requires at least one broker", func() {
		_, err := NewPublisher(Config{}, zap.NewNop())
		Expect(err).To(HaveOccurred())
	})

	It("defaults the topic", func() {
		p, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		defer p.Close()

		Expect(p.writer.Topic).To(Equal(DefaultTopic))
	})

	It("partitions by message key so one conversation's events stay ordered", func() {
		p, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		defer p.Close()

		balancer, ok := p.writer.Balancer.(*kafkago.Hash)
		Expect(ok).To(BeTrue(), "writer must use a key-routing balancer")

		// A keyed balancer always maps the same key to the same partition.
		msg := kafkago.Message{Key: []byte("conversation-1")}
		partitions := []int{0, 1, 2, 3, 4, 5}
		first := balancer.Balance(msg, partitions...)
		for range 10 {
			Expect(balancer.Balance(msg, partitions...)).To(Equal(first))
		}
	})
})

var _ = Describe("PublishTurn", func() {
	It("rejects a nil event before touching the writer", func() {
		p, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		defer p.Close()

		Expect(p.PublishTurn(context.Background(), nil)).To(MatchError(eventstream.ErrNilTurnEvent))
	})
})

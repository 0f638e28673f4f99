package convo_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/groundedhq/grounded/pkg/convo"
	"github.com/groundedhq/grounded/pkg/vector"
	"github.com/groundedhq/grounded/pkg/vector/memory"
)

func TestConvo(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Convo Suite")
}

var _ = Describe("Store", func() {
	var (
		store *convo.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		store = convo.NewStore()
		ctx = context.Background()
	})

	Describe("Create", func() {
		It("always returns a fresh, previously-unused id", func() {
			seen := make(map[string]bool)
			for range 100 {
				conv := store.Create()
				Expect(conv.ID()).NotTo(BeEmpty())
				Expect(seen[conv.ID()]).To(BeFalse())
				seen[conv.ID()] = true
			}
		})
	})

	Describe("Get", func() {
		It("returns the created conversation", func() {
			created := store.Create()
			got, err := store.Get(created.ID())
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeIdenticalTo(created))
		})

		It("returns ErrNotFound for a never-created id", func() {
			_, err := store.Get("no-such-conversation")
			Expect(err).To(MatchError(convo.ErrNotFound))
		})
	})

	Describe("AppendTurns and History", func() {
		It("preserves append order", func() {
			conv := store.Create()

			Expect(store.AppendTurns(conv.ID(),
				convo.DialogueTurn{Role: convo.RoleUser, Text: "question one"},
				convo.DialogueTurn{Role: convo.RoleAssistant, Text: "answer one"},
			)).To(Succeed())
			Expect(store.AppendTurns(conv.ID(),
				convo.DialogueTurn{Role: convo.RoleUser, Text: "question two"},
			)).To(Succeed())

			history, err := store.History(conv.ID(), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(3))
			Expect(history[0].Text).To(Equal("question one"))
			Expect(history[1].Text).To(Equal("answer one"))
			Expect(history[2].Text).To(Equal("question two"))
		})

		It("truncates to the most recent turns, dropping oldest first", func() {
			conv := store.Create()
			for n := range 10 {
				conv.AppendTurns(convo.DialogueTurn{
					Role: convo.RoleUser,
					Text: fmt.Sprintf("turn %d", n),
				})
			}

			history, err := store.History(conv.ID(), 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(4))
			Expect(history[0].Text).To(Equal("turn 6"))
			Expect(history[3].Text).To(Equal("turn 9"))
		})

		It("returns a copy that later appends do not mutate", func() {
			conv := store.Create()
			conv.AppendTurns(convo.DialogueTurn{Role: convo.RoleUser, Text: "original"})

			history := conv.History(0)
			conv.AppendTurns(convo.DialogueTurn{Role: convo.RoleAssistant, Text: "later"})

			Expect(history).To(HaveLen(1))
		})

		It("errors on an unknown conversation", func() {
			err := store.AppendTurns("missing", convo.DialogueTurn{Role: convo.RoleUser, Text: "x"})
			Expect(err).To(MatchError(convo.ErrNotFound))
		})
	})

	Describe("AddDocument", func() {
		It("publishes the document and its passages together", func() {
			conv := store.Create()
			doc := convo.NewDocument("report.txt", []vector.Passage{
				{
					ID:          "p0",
					DocName:     "report.txt",
					Text:        "first passage",
					Fingerprint: vector.NewFingerprint([]float32{1, 0}),
				},
			})

			Expect(store.AddDocument(ctx, conv.ID(), doc)).To(Succeed())
			Expect(conv.DocumentCount()).To(Equal(1))

			matches, err := conv.Index().Rank(ctx, vector.NewFingerprint([]float32{1, 0}), 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(1))
			Expect(matches[0].Text).To(Equal("first passage"))
		})

		It("accumulates documents without removing earlier ones", func() {
			conv := store.Create()
			for n := range 3 {
				doc := convo.NewDocument(fmt.Sprintf("doc-%d", n), nil)
				Expect(conv.AddDocument(ctx, doc)).To(Succeed())
			}
			Expect(conv.DocumentCount()).To(Equal(3))
		})

		It("never publishes a document whose index write failed", func() {
			failStore := convo.NewStore(convo.WithIndexFactory(func() vector.Index {
				return &failingIndex{Index: memory.NewIndex()}
			}))
			conv := failStore.Create()

			doc := convo.NewDocument("broken.txt", []vector.Passage{
				{ID: "p0", Text: "text", Fingerprint: vector.NewFingerprint([]float32{1, 0})},
			})

			Expect(conv.AddDocument(ctx, doc)).NotTo(Succeed())
			Expect(conv.DocumentCount()).To(BeZero())
		})
	})

	Describe("concurrent access", func() {
		It("does not block history appends during a slow index write", func() {
			slowStore := convo.NewStore(convo.WithIndexFactory(func() vector.Index {
				return &slowIndex{Index: memory.NewIndex(), delay: 500 * time.Millisecond}
			}))
			conv := slowStore.Create()

			doc := convo.NewDocument("big.txt", []vector.Passage{
				{ID: "p0", Text: "text", Fingerprint: vector.NewFingerprint([]float32{1, 0})},
			})

			adding := make(chan struct{})
			done := make(chan error, 1)
			go func() {
				close(adding)
				done <- conv.AddDocument(ctx, doc)
			}()

			<-adding
			time.Sleep(50 * time.Millisecond)

			start := time.Now()
			conv.AppendTurns(convo.DialogueTurn{Role: convo.RoleUser, Text: "hello"})
			Expect(time.Since(start)).To(BeNumerically("<", 200*time.Millisecond))

			Expect(<-done).To(Succeed())
			Expect(conv.DocumentCount()).To(Equal(1))
		})

		It("loses no turns when requests race on one conversation", func() {
			conv := store.Create()

			const writers = 8
			const perWriter = 50

			var wg sync.WaitGroup
			wg.Add(writers)
			for w := range writers {
				go func(w int) {
					defer wg.Done()
					for n := range perWriter {
						conv.AppendTurns(
							convo.DialogueTurn{Role: convo.RoleUser, Text: fmt.Sprintf("w%d q%d", w, n)},
							convo.DialogueTurn{Role: convo.RoleAssistant, Text: fmt.Sprintf("w%d a%d", w, n)},
						)
					}
				}(w)
			}
			wg.Wait()

			Expect(conv.History(0)).To(HaveLen(writers * perWriter * 2))
		})

		It("isolates conversations mutated concurrently", func() {
			convA := store.Create()
			convB := store.Create()

			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				for n := range 200 {
					convA.AppendTurns(convo.DialogueTurn{Role: convo.RoleUser, Text: fmt.Sprintf("a%d", n)})
				}
			}()
			go func() {
				defer wg.Done()
				for n := range 200 {
					convB.AppendTurns(convo.DialogueTurn{Role: convo.RoleUser, Text: fmt.Sprintf("b%d", n)})
				}
			}()
			wg.Wait()

			historyA := convA.History(0)
			historyB := convB.History(0)
			Expect(historyA).To(HaveLen(200))
			Expect(historyB).To(HaveLen(200))
			for _, turn := range historyA {
				Expect(turn.Text).To(HavePrefix("a"))
			}
			for _, turn := range historyB {
				Expect(turn.Text).To(HavePrefix("b"))
			}
		})
	})

	Describe("Evict", func() {
		It("removes the conversation", func() {
			conv := store.Create()
			Expect(store.Evict(conv.ID())).To(Succeed())

			_, err := store.Get(conv.ID())
			Expect(err).To(MatchError(convo.ErrNotFound))
		})

		It("errors for an unknown id", func() {
			Expect(store.Evict("missing")).To(MatchError(convo.ErrNotFound))
		})
	})
})

// slowIndex delays Add to simulate a persistent backend's disk or network
// latency.
type slowIndex struct {
	vector.Index
	delay time.Duration
}

func (s *slowIndex) Add(ctx context.Context, passages []vector.Passage) error {
	time.Sleep(s.delay)
	return s.Index.Add(ctx, passages)
}

// failingIndex rejects every Add.
type failingIndex struct {
	vector.Index
}

func (f *failingIndex) Add(context.Context, []vector.Passage) error {
	return errors.New("index backend unavailable")
}

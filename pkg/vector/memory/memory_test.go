package memory_test

import (
	"context"
	"fmt"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/groundedhq/grounded/pkg/vector"
	"github.com/groundedhq/grounded/pkg/vector/memory"
)

func TestMemoryIndex(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Memory Index Suite")
}

func passage(id string, values ...float32) vector.Passage {
	return vector.Passage{
		ID:          id,
		DocID:       "doc",
		DocName:     "doc.txt",
		Text:        "text for " + id,
		Fingerprint: vector.NewFingerprint(values),
	}
}

var _ = Describe("Index", func() {
	var (
		idx *memory.Index
		ctx context.Context
	)

	BeforeEach(func() {
		idx = memory.NewIndex()
		ctx = context.Background()
	})

	Describe("Rank", func() {
		It("returns an empty result for an empty index", func() {
			matches, err := idx.Rank(ctx, vector.NewFingerprint([]float32{1, 0}), 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(BeEmpty())
		})

		It("orders matches by descending similarity", func() {
			Expect(idx.Add(ctx, []vector.Passage{
				passage("far", -1, 0),
				passage("near", 1, 0.1),
				passage("mid", 1, 2),
			})).To(Succeed())

			matches, err := idx.Rank(ctx, vector.NewFingerprint([]float32{1, 0}), 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(3))
			Expect(matches[0].ID).To(Equal("near"))
			Expect(matches[1].ID).To(Equal("mid"))
			Expect(matches[2].ID).To(Equal("far"))
		})

		It("never returns more than k matches", func() {
			for n := range 10 {
				Expect(idx.Add(ctx, []vector.Passage{
					passage(fmt.Sprintf("p%d", n), 1, float32(n)),
				})).To(Succeed())
			}

			matches, err := idx.Rank(ctx, vector.NewFingerprint([]float32{1, 0}), 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(4))
		})

		It("returns min(k, len) matches when the index is small", func() {
			Expect(idx.Add(ctx, []vector.Passage{passage("only", 1, 1)})).To(Succeed())

			matches, err := idx.Rank(ctx, vector.NewFingerprint([]float32{1, 0}), 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(1))
		})

		It("preserves insertion order on score ties", func() {
			// All four passages are parallel to the query and score
			// identically regardless of magnitude.
			Expect(idx.Add(ctx, []vector.Passage{
				passage("first", 1, 0),
				passage("second", 2, 0),
				passage("third", 3, 0),
				passage("fourth", 4, 0),
			})).To(Succeed())

			matches, err := idx.Rank(ctx, vector.NewFingerprint([]float32{1, 0}), 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches[0].ID).To(Equal("first"))
			Expect(matches[1].ID).To(Equal("second"))
			Expect(matches[2].ID).To(Equal("third"))
			Expect(matches[3].ID).To(Equal("fourth"))
		})

		It("is stable across repeated runs on an unchanged index", func() {
			Expect(idx.Add(ctx, []vector.Passage{
				passage("a", 1, 0.5),
				passage("b", 0.5, 1),
				passage("c", 1, 1),
			})).To(Succeed())

			query := vector.NewFingerprint([]float32{0.7, 0.7})
			first, err := idx.Rank(ctx, query, 3)
			Expect(err).NotTo(HaveOccurred())

			for range 5 {
				again, err := idx.Rank(ctx, query, 3)
				Expect(err).NotTo(HaveOccurred())
				Expect(again).To(Equal(first))
			}
		})

		It("rejects a query of the wrong dimensionality", func() {
			Expect(idx.Add(ctx, []vector.Passage{passage("p", 1, 2, 3)})).To(Succeed())

			_, err := idx.Rank(ctx, vector.NewFingerprint([]float32{1, 2}), 3)
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
		})

		It("rejects a non-positive k", func() {
			_, err := idx.Rank(ctx, vector.NewFingerprint([]float32{1}), 0)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Add", func() {
		It("rejects passages of mixed dimensionality", func() {
			Expect(idx.Add(ctx, []vector.Passage{passage("p1", 1, 2)})).To(Succeed())

			err := idx.Add(ctx, []vector.Passage{passage("p2", 1, 2, 3)})
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
			Expect(idx.Len()).To(Equal(1))
		})

		It("accepts an empty batch", func() {
			Expect(idx.Add(ctx, nil)).To(Succeed())
			Expect(idx.Len()).To(BeZero())
		})
	})
})

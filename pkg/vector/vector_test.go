package vector_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/groundedhq/grounded/pkg/vector"
)

func TestVector(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Vector Suite")
}

var _ = Describe("Fingerprint", func() {
	It("precomputes the magnitude", func() {
		fp := vector.NewFingerprint([]float32{3, 4})
		Expect(fp.Norm).To(BeNumerically("~", 5.0, 1e-9))
		Expect(fp.Dim()).To(Equal(2))
	})

	It("substitutes a positive floor for a zero vector", func() {
		fp := vector.NewFingerprint([]float32{0, 0, 0})
		Expect(fp.Norm).To(BeNumerically(">", 0))
	})
})

var _ = Describe("Cosine", func() {
	It("scores identical fingerprints as 1", func() {
		a := vector.NewFingerprint([]float32{0.5, 0.25, 1.5})
		b := vector.NewFingerprint([]float32{0.5, 0.25, 1.5})

		score, err := vector.Cosine(a, b)
		Expect(err).NotTo(HaveOccurred())
		Expect(score).To(BeNumerically("~", 1.0, 1e-6))
	})

	It("scores orthogonal fingerprints as 0", func() {
		a := vector.NewFingerprint([]float32{1, 0})
		b := vector.NewFingerprint([]float32{0, 1})

		score, err := vector.Cosine(a, b)
		Expect(err).NotTo(HaveOccurred())
		Expect(score).To(BeNumerically("~", 0.0, 1e-9))
	})

	It("scores opposed fingerprints as -1", func() {
		a := vector.NewFingerprint([]float32{1, 1})
		b := vector.NewFingerprint([]float32{-1, -1})

		score, err := vector.Cosine(a, b)
		Expect(err).NotTo(HaveOccurred())
		Expect(score).To(BeNumerically("~", -1.0, 1e-6))
	})

	It("scores a zero vector as 0 without dividing by zero", func() {
		a := vector.NewFingerprint([]float32{0, 0})
		b := vector.NewFingerprint([]float32{1, 2})

		score, err := vector.Cosine(a, b)
		Expect(err).NotTo(HaveOccurred())
		Expect(score).To(Equal(0.0))
	})

	It("fails fast on mismatched dimensionality", func() {
		a := vector.NewFingerprint([]float32{1, 2})
		b := vector.NewFingerprint([]float32{1, 2, 3})

		_, err := vector.Cosine(a, b)
		Expect(err).To(MatchError(vector.ErrDimensionMismatch))
	})
})

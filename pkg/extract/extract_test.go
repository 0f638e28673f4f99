package extract_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/groundedhq/grounded/pkg/extract"
)

func TestExtract(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Extract Suite")
}

var _ = Describe("Plaintext", func() {
	var (
		extractor *extract.Plaintext
		ctx       context.Context
	)

	BeforeEach(func() {
		extractor = extract.NewPlaintext()
		ctx = context.Background()
	})

	It("returns the text of a valid upload", func() {
		text, err := extractor.Extract(ctx, []byte("hello document"), "note.txt")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("hello document"))
	})

	It("rejects empty uploads", func() {
		_, err := extractor.Extract(ctx, nil, "empty.txt")
		Expect(err).To(MatchError(extract.ErrIngestFailed))
	})

	It("rejects whitespace-only uploads", func() {
		_, err := extractor.Extract(ctx, []byte("  \n\t "), "blank.txt")
		Expect(err).To(MatchError(extract.ErrIngestFailed))
	})

	It("rejects binary uploads", func() {
		_, err := extractor.Extract(ctx, []byte{0xff, 0xfe, 0x00, 0x80}, "blob.bin")
		Expect(err).To(MatchError(extract.ErrIngestFailed))
	})
})

package resolver_test

import (
	"math/big"
	"slices"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arcade-market/media-api/pkg/resolver"
)

var _ = Describe("DirectoryGuesser", func() {
	guesser := resolver.NewDirectoryGuesser()
	hex5 := strings.Repeat("0", 63) + "5"

	It("should put hex-named candidates before decimal-named ones", func() {
		names := guesser.CandidateFilenames(big.NewInt(5))

		hexIdx := slices.Index(names, hex5+".png")
		decIdx := slices.Index(names, "5.png")
		Expect(hexIdx).To(BeNumerically(">=", 0))
		Expect(decIdx).To(BeNumerically(">", hexIdx))

		for _, ext := range resolver.ImageExtensions {
			Expect(slices.Index(names, hex5+ext)).To(BeNumerically("<", decIdx))
		}
	})

	It("should end with the conventional names", func() {
		names := guesser.CandidateFilenames(big.NewInt(5))
		Expect(names).To(ContainElements("cover.png", "preview.webp", "banner.svg", "0.jpg"))
		Expect(slices.Index(names, "5.svg")).To(BeNumerically("<", slices.Index(names, "0.png")))
		Expect(names).To(HaveLen(8 * len(resolver.ImageExtensions)))
	})

	It("should try every conventional name as png before any other extension", func() {
		names := guesser.CandidateFilenames(big.NewInt(5))
		firstJPG := slices.Index(names, "0.jpg")
		for _, name := range resolver.ConventionalNames {
			Expect(slices.Index(names, name+".png")).To(BeNumerically("<", firstJPG))
		}
	})

	It("should fit every candidate in the default guess budget", func() {
		budget := resolver.DefaultEngineConfig().MaxDirectoryGuesses
		names := guesser.CandidateFilenames(big.NewInt(5))
		Expect(len(names)).To(BeNumerically("<=", budget))

		walked := len(guesser.MetadataFilenames(big.NewInt(5))) + slices.Index(names, "banner.png")
		Expect(walked).To(BeNumerically("<", budget))
	})

	It("should not repeat names when the token id is a conventional name", func() {
		names := guesser.CandidateFilenames(big.NewInt(0))
		Expect(names).To(HaveLen(7 * len(resolver.ImageExtensions)))
		Expect(slices.Index(names, "0.png")).To(Equal(len(resolver.ImageExtensions)))
	})

	It("should list metadata names decimal first", func() {
		Expect(guesser.MetadataFilenames(big.NewInt(5))).To(Equal([]string{
			"5.json", hex5 + ".json", "5", hex5, "metadata.json",
		}))
	})

	It("should treat a nil token id as zero", func() {
		Expect(guesser.MetadataFilenames(nil)[0]).To(Equal("0.json"))
	})
})

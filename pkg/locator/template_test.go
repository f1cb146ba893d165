package locator_test

import (
	"math/big"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arcade-market/media-api/pkg/locator"
)

var _ = Describe("Expand", func() {
	It("inserts the 64 character hex id", func() {
		l := locator.Normalize("ipfs://" + cidV0 + "/{id}.json")
		expanded, err := locator.Expand(l, big.NewInt(3))
		Expect(err).ToNot(HaveOccurred())
		Expect(expanded.Path).To(Equal(cidV0 + "/" + strings.Repeat("0", 63) + "3.json"))
		Expect(expanded.Kind).To(Equal(locator.KindMetadata))
		Expect(expanded.Raw).To(Equal(l.Raw))
	})

	It("replaces upper-case and escaped markers", func() {
		l := locator.Normalize("https://example.com/a/{ID}/%7Bid%7D.png")
		expanded, err := locator.Expand(l, big.NewInt(255))
		Expect(err).ToNot(HaveOccurred())
		hexID := strings.Repeat("0", 62) + "ff"
		Expect(expanded.Path).To(Equal("https://example.com/a/" + hexID + "/" + hexID + ".png"))
	})

	It("leaves locators without a marker unchanged", func() {
		l := locator.Normalize("ipfs://" + cidV0 + "/1.png")
		expanded, err := locator.Expand(l, big.NewInt(42))
		Expect(err).ToNot(HaveOccurred())
		Expect(expanded).To(Equal(l))
	})

	It("produces exactly 64 lowercase hex characters across the range", func() {
		upper := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(2))
		for _, n := range []*big.Int{big.NewInt(0), big.NewInt(10), big.NewInt(1 << 40), upper} {
			expanded, err := locator.Expand(locator.Normalize("ipfs://"+cidV0+"/{id}"), n)
			Expect(err).ToNot(HaveOccurred())
			segment := strings.TrimPrefix(expanded.Path, cidV0+"/")
			Expect(segment).To(MatchRegexp(`^[0-9a-f]{64}$`))

			parsed, ok := new(big.Int).SetString(segment, 16)
			Expect(ok).To(BeTrue())
			Expect(parsed.Cmp(n)).To(Equal(0))
		}
	})

	It("fails fast on out of range ids", func() {
		l := locator.Normalize("ipfs://" + cidV0 + "/{id}")
		_, err := locator.Expand(l, big.NewInt(-1))
		Expect(err).To(MatchError(locator.ErrInvalidTokenID))

		_, err = locator.Expand(l, new(big.Int).Lsh(big.NewInt(1), 256))
		Expect(err).To(MatchError(locator.ErrInvalidTokenID))
	})
})

var _ = Describe("ParseTokenID", func() {
	DescribeTable("accepted input",
		func(in any, want string) {
			id, err := locator.ParseTokenID(in)
			Expect(err).ToNot(HaveOccurred())
			Expect(id.String()).To(Equal(want))
		},
		Entry("empty string", "", "0"),
		Entry("nil", nil, "0"),
		Entry("decimal string", "42", "42"),
		Entry("hex string", "0x2a", "42"),
		Entry("int", 7, "7"),
		Entry("uint64", uint64(18446744073709551615), "18446744073709551615"),
		Entry("big int", big.NewInt(99), "99"),
		Entry("large decimal", "115792089237316195423570985008687907853269984665640564039457584007913129639935",
			"115792089237316195423570985008687907853269984665640564039457584007913129639935"),
	)

	DescribeTable("rejected input",
		func(in any) {
			_, err := locator.ParseTokenID(in)
			Expect(err).To(MatchError(locator.ErrInvalidTokenID))
		},
		Entry("negative string", "-1"),
		Entry("negative int", -5),
		Entry("garbage", "12abc"),
		Entry("bare hex prefix", "0x"),
		Entry("float", 1.5),
		Entry("too wide", "115792089237316195423570985008687907853269984665640564039457584007913129639936"),
	)
})

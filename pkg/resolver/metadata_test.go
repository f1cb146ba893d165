package resolver_test

import (
	"context"
	"math/big"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arcade-market/media-api/pkg/gateway"
	"github.com/arcade-market/media-api/pkg/resolver"
)

var _ = Describe("MetadataResolver", func() {
	Describe("ParseDocument", func() {
		It("should parse strict JSON", func() {
			fields, err := resolver.ParseDocument([]byte(`{"image":"ipfs://x"}`))
			Expect(err).ToNot(HaveOccurred())
			Expect(fields).To(HaveKeyWithValue("image", "ipfs://x"))
		})

		It("should re-parse bodies with a BOM, comments and trailing commas", func() {
			body := "\xEF\xBB\xBF  {\n  // generated\n  \"name\": \"x\",\n  \"image\": \"cover.png\",\n}\n"
			fields, err := resolver.ParseDocument([]byte(body))
			Expect(err).ToNot(HaveOccurred())
			Expect(fields).To(HaveKeyWithValue("image", "cover.png"))
		})

		It("should fail on bodies that are not JSON at all", func() {
			_, err := resolver.ParseDocument([]byte("<html>gateway timeout</html>"))
			Expect(err).To(HaveOccurred())
		})

		It("should fail on an empty body", func() {
			_, err := resolver.ParseDocument([]byte("   "))
			Expect(err).To(HaveOccurred())
		})
	})

	DescribeTable("ExtractImage",
		func(doc string, expected string, found bool) {
			fields, err := resolver.ParseDocument([]byte(doc))
			Expect(err).ToNot(HaveOccurred())

			value, ok := resolver.ExtractImage(fields)
			Expect(ok).To(Equal(found))
			Expect(value).To(Equal(expected))
		},
		Entry("image", `{"image":"ipfs://a"}`, "ipfs://a", true),
		Entry("image wins over image_url", `{"image_url":"b","image":"a"}`, "a", true),
		Entry("empty image is skipped", `{"image":"  ","imageUrl":"c"}`, "c", true),
		Entry("image_url", `{"image_url":"b"}`, "b", true),
		Entry("imageUri", `{"imageUri":"d"}`, "d", true),
		Entry("image_uri", `{"image_uri":"e"}`, "e", true),
		Entry("properties.image", `{"properties":{"image":"f"}}`, "f", true),
		Entry("media list of strings", `{"media":["g"]}`, "g", true),
		Entry("media list of objects", `{"media":[{"type":"x"},{"gateway":"h"}]}`, "h", true),
		Entry("media object", `{"media":{"uri":"i"}}`, "i", true),
		Entry("properties.files image entry",
			`{"properties":{"files":[{"type":"video/mp4","uri":"v"},{"type":"image/png","uri":"j"}]}}`, "j", true),
		Entry("non-string image", `{"image":42}`, "", false),
		Entry("no recognised field", `{"name":"x","description":"y"}`, "", false),
	)

	It("should turn inline svg image_data into a data URI", func() {
		value, ok := resolver.ExtractImage(map[string]any{"image_data": "<svg xmlns='http://www.w3.org/2000/svg'/>"})
		Expect(ok).To(BeTrue())
		Expect(value).To(HavePrefix("data:image/svg+xml;base64,"))
	})

	It("should tolerate a nil document", func() {
		_, ok := resolver.ExtractImage(nil)
		Expect(ok).To(BeFalse())
	})

	Describe("Fetch", func() {
		It("should report the status and final URL without a body for images", func() {
			mirror := newFakeMirror(map[string]file{
				cidA + "/a.png": {contentType: pngType, body: "png"},
			})
			m := resolver.NewMetadataResolver(nil, 0)

			doc, err := m.Fetch(context.Background(), gateway.Candidate{URL: mirror.ContentURL(cidA + "/a.png")})
			Expect(err).ToNot(HaveOccurred())
			Expect(doc.StatusCode).To(Equal(200))
			Expect(doc.URL).To(Equal(mirror.ContentURL(cidA + "/a.png")))
			Expect(doc.Body).To(BeEmpty())
		})

		It("should refuse documents over the size cap", func() {
			mirror := newFakeMirror(map[string]file{
				"/big.json": {contentType: jsonType, body: `{"x":"` + strings.Repeat("a", resolver.DefaultMaxDocumentBytes) + `"}`},
			})
			m := resolver.NewMetadataResolver(nil, 0)

			_, err := m.Fetch(context.Background(), gateway.Candidate{URL: mirror.URL() + "/big.json"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ResolveFromDocument", func() {
		It("should resolve the referenced image through the mirrors", func() {
			mirror := newFakeMirror(map[string]file{
				cidA + "/meta.json": {contentType: jsonType, body: `{"image":"ipfs://` + cidB + `/pic.png"}`},
				cidB + "/pic.png":   {contentType: pngType, body: "png"},
			})
			engine := newEngine(nil, resolver.EngineConfig{}, mirror.URL())

			u, ok := engine.Metadata().ResolveFromDocument(context.Background(), mirror.ContentURL(cidA+"/meta.json"), big.NewInt(0))
			Expect(ok).To(BeTrue())
			Expect(u).To(Equal(mirror.ContentURL(cidB + "/pic.png")))
		})

		It("should return false for a document without an image", func() {
			mirror := newFakeMirror(map[string]file{
				cidA + "/meta.json": {contentType: jsonType, body: `{"name":"nothing here"}`},
			})
			engine := newEngine(nil, resolver.EngineConfig{}, mirror.URL())

			_, ok := engine.Metadata().ResolveFromDocument(context.Background(), mirror.ContentURL(cidA+"/meta.json"), nil)
			Expect(ok).To(BeFalse())
		})
	})
})

package media_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"

	"github.com/arcade-market/media-api/internal/api/media"
	"github.com/arcade-market/media-api/pkg/gateway"
	"github.com/arcade-market/media-api/pkg/resolver"
)

const cid = "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"

var _ = Describe("Media handler", func() {
	var (
		e        *echo.Echo
		fake     *mockResolver
		upstream *httptest.Server
		hits     atomic.Int32
	)

	BeforeEach(func() {
		hits.Store(0)
		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			switch r.URL.Path {
			case "/ipfs/" + cid + "/cover.png", "/plain/cover.png":
				w.Header().Set("Content-Type", "image/png")
				_, _ = w.Write([]byte("png-bytes"))
			case "/ipfs/" + cid + "/#1.png", "/ipfs/" + cid + "/100%.png", "/ipfs/" + cid + "/what?.png":
				w.Header().Set("Content-Type", "image/png")
				_, _ = w.Write([]byte(r.URL.EscapedPath()))
			default:
				http.NotFound(w, r)
			}
		}))
		DeferCleanup(upstream.Close)

		dead := httptest.NewServer(http.NotFoundHandler())
		deadURL := dead.URL
		dead.Close()

		health := gateway.NewHealthTracker(gateway.DefaultHealthConfig(), nil)
		registry, err := gateway.NewRegistry([]gateway.MirrorConfig{
			{Name: "dead", BaseURL: deadURL},
			{Name: "up", BaseURL: upstream.URL},
		}, gateway.PolicyStatic, health)
		Expect(err).ToNot(HaveOccurred())

		fetcher := gateway.NewFetcher(nil, health)
		fake = new(mockResolver)

		e = echo.New()
		e.Validator = &testValidator{validator: validator.New()}
		handler := media.NewHandler(fake, registry, fetcher, nil, media.Config{
			HeaderTimeout: 2 * time.Second,
			StreamTimeout: 5 * time.Second,
		})
		media.RegisterRoutes(e.Group("/api/v1"), handler)
		media.RegisterContentRoutes(e, handler)
	})

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	Describe("GET /ipfs/:cid/*", func() {
		It("should stream content from the first mirror that answers", func() {
			rec := get("/ipfs/" + cid + "/cover.png")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("png-bytes"))
			Expect(rec.Header().Get("Content-Type")).To(Equal("image/png"))
			Expect(rec.Header().Get("Cache-Control")).To(Equal("public, max-age=31536000, immutable"))
			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})

		DescribeTable("should keep reserved characters in file names encoded",
			func(file, upstreamPath string) {
				rec := get("/ipfs/" + cid + "/" + file)

				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(rec.Body.String()).To(Equal(upstreamPath))
			},
			Entry("hash", "%231.png", "/ipfs/"+cid+"/%231.png"),
			Entry("percent", "100%25.png", "/ipfs/"+cid+"/100%25.png"),
			Entry("question mark", "what%3F.png", "/ipfs/"+cid+"/what%3F.png"),
		)

		It("should reject a segment that is not a content identifier", func() {
			rec := get("/ipfs/not-a-cid/cover.png")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(hits.Load()).To(BeZero())
		})

		It("should answer 502 when every mirror fails", func() {
			rec := get("/ipfs/" + cid + "/missing.png")
			Expect(rec.Code).To(Equal(http.StatusBadGateway))
			Expect(rec.Body.String()).To(ContainSubstring(`"error"`))
		})
	})

	Describe("GET /api/v1/image", func() {
		It("should resolve in best-effort mode and stream the result", func() {
			fake.On("Resolve", "ipfs://"+cid+"/{id}.json", mock.MatchedBy(func(opts resolver.Options) bool {
				return !opts.Strict && opts.TokenID.Sign() == 0
			})).Return(resolver.Result{
				Status: resolver.StatusResolved,
				URL:    upstream.URL + "/ipfs/" + cid + "/cover.png",
			}, nil)

			rec := get("/api/v1/image?src=ipfs://" + cid + "/%7Bid%7D.json")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("png-bytes"))
			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
			fake.AssertExpectations(GinkgoT())
		})

		It("should stream passthrough URLs from their origin", func() {
			fake.On("Resolve", "https://example.com/a", mock.Anything).
				Return(resolver.Result{Status: resolver.StatusResolved, URL: upstream.URL + "/plain/cover.png"}, nil)

			rec := get("/api/v1/image?src=https://example.com/a")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("png-bytes"))
		})

		It("should decode inline data URIs", func() {
			fake.On("Resolve", "ipfs://"+cid+"/meta.json", mock.Anything).
				Return(resolver.Result{Status: resolver.StatusResolved, URL: "data:image/svg+xml;base64,PHN2Zy8+"}, nil)

			rec := get("/api/v1/image?src=ipfs://" + cid + "/meta.json")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("image/svg+xml"))
			Expect(rec.Body.String()).To(Equal("<svg/>"))
			Expect(hits.Load()).To(BeZero())
		})

		It("should answer 502 when nothing resolves", func() {
			fake.On("Resolve", "ipfs://"+cid+"/", mock.Anything).
				Return(resolver.Result{Status: resolver.StatusFailed}, nil)

			rec := get("/api/v1/image?src=ipfs://" + cid + "/")
			Expect(rec.Code).To(Equal(http.StatusBadGateway))
		})

		It("should require src", func() {
			rec := get("/api/v1/image")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})
})

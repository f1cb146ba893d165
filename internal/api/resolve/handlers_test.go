package resolve_test

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"

	"github.com/arcade-market/media-api/internal/api/common"
	"github.com/arcade-market/media-api/internal/api/resolve"
	"github.com/arcade-market/media-api/pkg/resolver"
)

var _ = Describe("Resolve handler", func() {
	var (
		e            *echo.Echo
		fake *mockResolver
	)

	BeforeEach(func() {
		e = echo.New()
		e.Validator = &testValidator{validator: validator.New()}
		fake = new(mockResolver)
		resolve.RegisterRoutes(e.Group("/api/v1"), resolve.NewHandler(fake))
	})

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	tokenIs := func(n int64) interface{} {
		return mock.MatchedBy(func(opts resolver.Options) bool {
			return opts.TokenID != nil && opts.TokenID.Cmp(big.NewInt(n)) == 0
		})
	}

	It("should return the resolved image URL", func() {
		fake.On("Resolve", "ipfs://cid/{id}.json", tokenIs(3)).
			Return(resolver.Result{Status: resolver.StatusResolved, URL: "https://ipfs.io/ipfs/cid2/cover.png", Strategy: resolver.StrategyMetadata}, nil)

		rec := get("/api/v1/resolve?src=" + "ipfs%3A%2F%2Fcid%2F%7Bid%7D.json" + "&tokenId=3")

		Expect(rec.Code).To(Equal(http.StatusOK))
		var body common.ResolveResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.ImageURL).To(Equal("https://ipfs.io/ipfs/cid2/cover.png"))
		Expect(body.Strategy).To(Equal("metadata"))
		fake.AssertExpectations(GinkgoT())
	})

	It("should default the token id to zero and use best-effort mode", func() {
		fake.On("Resolve", "ipfs://cid/a.png", mock.MatchedBy(func(opts resolver.Options) bool {
			return opts.TokenID.Sign() == 0 && !opts.Strict
		})).Return(resolver.Result{Status: resolver.StatusResolved, URL: "https://x/a.png"}, nil)

		rec := get("/api/v1/resolve?src=ipfs://cid/a.png")
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("should pass strict mode through", func() {
		fake.On("Resolve", "ipfs://cid/a.png", mock.MatchedBy(func(opts resolver.Options) bool {
			return opts.Strict
		})).Return(resolver.Result{Status: resolver.StatusFailed, FallbackURL: "https://x/a.png"}, nil)

		rec := get("/api/v1/resolve?src=ipfs://cid/a.png&strict=true")
		Expect(rec.Code).To(Equal(http.StatusBadGateway))
		Expect(rec.Body.String()).To(ContainSubstring(`"error"`))
	})

	It("should reject a missing src", func() {
		rec := get("/api/v1/resolve?tokenId=1")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(rec.Body.String()).To(ContainSubstring("src is required"))
		fake.AssertNotCalled(GinkgoT(), "Resolve", mock.Anything, mock.Anything)
	})

	DescribeTable("should reject malformed token ids",
		func(tokenID string) {
			rec := get(fmt.Sprintf("/api/v1/resolve?src=ipfs://cid/a.png&tokenId=%s", tokenID))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		},
		Entry("negative", "-1"),
		Entry("not a number", "abc"),
		Entry("fractional", "1.5"),
	)

	It("should map malformed input from the engine to 400", func() {
		fake.On("Resolve", "x", mock.Anything).
			Return(resolver.Result{}, fmt.Errorf("%w: empty locator", resolver.ErrMalformedInput))

		rec := get("/api/v1/resolve?src=x")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should report best-effort results", func() {
		fake.On("Resolve", "ipfs://cid/", mock.Anything).
			Return(resolver.Result{Status: resolver.StatusResolved, URL: "https://x/cid/", BestEffort: true, FromCache: true}, nil)

		rec := get("/api/v1/resolve?src=ipfs://cid/")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var body common.ResolveResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.BestEffort).To(BeTrue())
		Expect(body.Cached).To(BeTrue())
	})
})

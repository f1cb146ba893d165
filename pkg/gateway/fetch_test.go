package gateway_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arcade-market/media-api/pkg/gateway"
	"github.com/arcade-market/media-api/pkg/locator"
)

var _ = Describe("Fetcher", func() {
	var (
		down, missing, good *httptest.Server
		goodHits            atomic.Int32
	)

	BeforeEach(func() {
		goodHits.Store(0)
		down = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		missing = httptest.NewServer(http.NotFoundHandler())
		good = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			goodHits.Add(1)
			w.Header().Set("Content-Type", "image/gif")
			_, _ = w.Write([]byte("GIF89a"))
		}))
	})

	AfterEach(func() {
		down.Close()
		missing.Close()
		good.Close()
	})

	It("streams from the first mirror that answers 2xx", func() {
		registry, err := gateway.NewRegistry([]gateway.MirrorConfig{
			{Name: "down", BaseURL: down.URL},
			{Name: "missing", BaseURL: missing.URL},
			{Name: "good", BaseURL: good.URL},
		}, gateway.PolicyStatic, nil)
		Expect(err).ToNot(HaveOccurred())

		fetcher := gateway.NewFetcher(nil, nil)
		up, err := fetcher.Open(context.Background(), registry.Candidates(locator.Normalize(cid)), time.Second, 0)
		Expect(err).ToNot(HaveOccurred())
		defer up.Close()

		body, err := io.ReadAll(up.Body)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(body)).To(Equal("GIF89a"))
		Expect(up.Header.Get("Content-Type")).To(Equal("image/gif"))
		Expect(up.Candidate.MirrorName()).To(Equal("good"))
		Expect(goodHits.Load()).To(Equal(int32(1)))
	})

	It("reports exhaustion", func() {
		registry, err := gateway.NewRegistry([]gateway.MirrorConfig{
			{Name: "down", BaseURL: down.URL},
			{Name: "missing", BaseURL: missing.URL},
		}, gateway.PolicyStatic, nil)
		Expect(err).ToNot(HaveOccurred())

		_, err = gateway.NewFetcher(nil, nil).Open(context.Background(), registry.Candidates(locator.Normalize(cid)), time.Second, 0)
		Expect(errors.Is(err, gateway.ErrUpstreamExhausted)).To(BeTrue())
	})

	It("honours the attempt cap", func() {
		registry, err := gateway.NewRegistry([]gateway.MirrorConfig{
			{Name: "down", BaseURL: down.URL},
			{Name: "good", BaseURL: good.URL},
		}, gateway.PolicyStatic, nil)
		Expect(err).ToNot(HaveOccurred())

		_, err = gateway.NewFetcher(nil, nil).Open(context.Background(), registry.Candidates(locator.Normalize(cid)), time.Second, 1)
		Expect(errors.Is(err, gateway.ErrUpstreamExhausted)).To(BeTrue())
		Expect(goodHits.Load()).To(BeZero())
	})
})

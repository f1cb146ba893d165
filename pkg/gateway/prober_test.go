package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arcade-market/media-api/pkg/gateway"
)

var _ = Describe("Prober", func() {
	var (
		server      *httptest.Server
		rangeHeader string
		prober      *gateway.Prober
		health      *gateway.HealthTracker
		mirror      *gateway.Mirror
	)

	BeforeEach(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/ipfs/image.png", func(w http.ResponseWriter, r *http.Request) {
			rangeHeader = r.Header.Get("Range")
			w.Header().Set("Content-Type", "image/png")
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write([]byte("\x89PNG"))
		})
		mux.HandleFunc("/ipfs/meta", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			_, _ = w.Write([]byte(`{"image":"x"}`))
		})
		mux.HandleFunc("/ipfs/text", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>"))
		})
		mux.HandleFunc("/ipfs/slow", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		})
		mux.HandleFunc("/ipfs/throttled", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
		mux.HandleFunc("/ipfs/redirect", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/ipfs/image.png", http.StatusFound)
		})
		server = httptest.NewServer(mux)

		var err error
		mirror, err = gateway.NewMirror(gateway.MirrorConfig{Name: "test", BaseURL: server.URL})
		Expect(err).ToNot(HaveOccurred())

		health = gateway.NewHealthTracker(gateway.HealthConfig{FailureThreshold: 1}, nil)
		prober = gateway.NewProber(server.Client(), 512, health, nil)
	})

	AfterEach(func() {
		server.Close()
	})

	probe := func(path string, timeout time.Duration) gateway.ProbeResult {
		return prober.Probe(context.Background(), gateway.Candidate{URL: mirror.URL(path), Mirror: mirror}, timeout)
	}

	It("requests a byte range and classifies images", func() {
		result := probe("image.png", time.Second)
		Expect(result.Classification).To(Equal(gateway.ClassImage))
		Expect(result.StatusCode).To(Equal(http.StatusPartialContent))
		Expect(result.Mirror).To(Equal("test"))
		Expect(rangeHeader).To(Equal("bytes=0-511"))
	})

	It("classifies JSON documents with parameters", func() {
		Expect(probe("meta", time.Second).Classification).To(Equal(gateway.ClassJSONDocument))
	})

	It("classifies other content and error statuses as unusable", func() {
		Expect(probe("text", time.Second).Classification).To(Equal(gateway.ClassUnusable))
		Expect(probe("missing", time.Second).Classification).To(Equal(gateway.ClassUnusable))
	})

	It("returns networkError on timeout instead of failing", func() {
		start := time.Now()
		result := probe("slow", 100*time.Millisecond)
		Expect(result.Classification).To(Equal(gateway.ClassNetworkError))
		Expect(time.Since(start)).To(BeNumerically("<", time.Second))
		Expect(health.State("test")).To(Equal(gateway.BreakerOpen))
	})

	It("blames the mirror for throttling", func() {
		result := probe("throttled", time.Second)
		Expect(result.Classification).To(Equal(gateway.ClassUnusable))
		Expect(health.State("test")).To(Equal(gateway.BreakerOpen))
	})

	It("reports the URL after redirects", func() {
		result := probe("redirect", time.Second)
		Expect(result.Classification).To(Equal(gateway.ClassImage))
		Expect(result.FinalURL).To(Equal(server.URL + "/ipfs/image.png"))
		Expect(result.URL).To(Equal(server.URL + "/ipfs/redirect"))
	})

	It("returns networkError for unreachable hosts", func() {
		closed := httptest.NewServer(http.NotFoundHandler())
		url := closed.URL + "/ipfs/x"
		closed.Close()

		result := prober.Probe(context.Background(), gateway.Candidate{URL: url}, time.Second)
		Expect(result.Classification).To(Equal(gateway.ClassNetworkError))
		Expect(result.Mirror).To(Equal("origin"))
	})
})

var _ = DescribeTable("Classify",
	func(status int, contentType string, want gateway.Classification) {
		Expect(gateway.Classify(status, contentType)).To(Equal(want))
	},
	Entry("png", 200, "image/png", gateway.ClassImage),
	Entry("partial svg", 206, "image/svg+xml", gateway.ClassImage),
	Entry("upper-case type", 200, "IMAGE/JPEG", gateway.ClassImage),
	Entry("json", 200, "application/json", gateway.ClassJSONDocument),
	Entry("ld+json", 200, "application/ld+json", gateway.ClassJSONDocument),
	Entry("octet stream", 200, "application/octet-stream", gateway.ClassUnusable),
	Entry("missing type", 200, "", gateway.ClassUnusable),
	Entry("not found image", 404, "image/png", gateway.ClassUnusable),
	Entry("server error", 502, "application/json", gateway.ClassUnusable),
)

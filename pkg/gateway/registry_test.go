package gateway_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arcade-market/media-api/pkg/gateway"
	"github.com/arcade-market/media-api/pkg/locator"
)

func collect(r *gateway.Registry, l locator.AssetLocator) []gateway.Candidate {
	var out []gateway.Candidate
	for c := range r.Candidates(l) {
		out = append(out, c)
	}
	return out
}

var _ = Describe("Registry", func() {
	mirrors := []gateway.MirrorConfig{
		{Name: "first", BaseURL: "https://first.example/"},
		{Name: "second", BaseURL: "https://second.example", PathPrefix: "content"},
		{Name: "last", BaseURL: "https://last.example"},
	}

	It("fans content-addressed locators out over mirrors in static order", func() {
		registry, err := gateway.NewRegistry(mirrors, gateway.PolicyStatic, nil)
		Expect(err).ToNot(HaveOccurred())

		candidates := collect(registry, locator.Normalize("ipfs://"+cid+"/1.png"))
		Expect(candidates).To(HaveLen(3))
		Expect(candidates[0].URL).To(Equal("https://first.example/ipfs/" + cid + "/1.png"))
		Expect(candidates[1].URL).To(Equal("https://second.example/content/" + cid + "/1.png"))
		Expect(candidates[2].URL).To(Equal("https://last.example/ipfs/" + cid + "/1.png"))
		Expect(candidates[2].MirrorName()).To(Equal("last"))
	})

	It("yields the locator itself for http and unknown locators", func() {
		registry, err := gateway.NewRegistry(mirrors, gateway.PolicyStatic, nil)
		Expect(err).ToNot(HaveOccurred())

		candidates := collect(registry, locator.Normalize("https://example.com/a.png"))
		Expect(candidates).To(HaveLen(1))
		Expect(candidates[0].URL).To(Equal("https://example.com/a.png"))
		Expect(candidates[0].Mirror).To(BeNil())
		Expect(candidates[0].MirrorName()).To(Equal("origin"))

		Expect(collect(registry, locator.Normalize("opaque"))).To(HaveLen(1))
		Expect(collect(registry, locator.Normalize(""))).To(BeEmpty())
	})

	It("stops generating when the consumer stops", func() {
		registry, err := gateway.NewRegistry(mirrors, gateway.PolicyStatic, nil)
		Expect(err).ToNot(HaveOccurred())

		seen := 0
		for range registry.Candidates(locator.Normalize("ipfs://" + cid)) {
			seen++
			break
		}
		Expect(seen).To(Equal(1))
	})

	It("moves mirrors with an open breaker last under the health policy", func() {
		health := gateway.NewHealthTracker(gateway.HealthConfig{FailureThreshold: 2}, nil)
		registry, err := gateway.NewRegistry(mirrors, gateway.PolicyHealth, health)
		Expect(err).ToNot(HaveOccurred())

		health.RecordFailure("first")
		health.RecordFailure("first")
		Expect(health.State("first")).To(Equal(gateway.BreakerOpen))

		candidates := collect(registry, locator.Normalize("ipfs://"+cid))
		Expect(candidates[0].MirrorName()).To(Equal("second"))
		Expect(candidates[1].MirrorName()).To(Equal("last"))
		Expect(candidates[2].MirrorName()).To(Equal("first"))
	})

	It("keeps static order under the static policy regardless of health", func() {
		health := gateway.NewHealthTracker(gateway.HealthConfig{FailureThreshold: 1}, nil)
		registry, err := gateway.NewRegistry(mirrors, gateway.PolicyStatic, health)
		Expect(err).ToNot(HaveOccurred())

		health.RecordFailure("first")
		Expect(collect(registry, locator.Normalize("ipfs://"+cid))[0].MirrorName()).To(Equal("first"))
	})

	It("rejects invalid mirror lists", func() {
		_, err := gateway.NewRegistry(nil, gateway.PolicyStatic, nil)
		Expect(err).To(HaveOccurred())

		_, err = gateway.NewRegistry([]gateway.MirrorConfig{{Name: "x", BaseURL: "ftp://x"}}, gateway.PolicyStatic, nil)
		Expect(err).To(HaveOccurred())

		_, err = gateway.NewRegistry([]gateway.MirrorConfig{
			{Name: "x", BaseURL: "https://a"},
			{Name: "x", BaseURL: "https://b"},
		}, gateway.PolicyStatic, nil)
		Expect(err).To(MatchError(ContainSubstring("duplicate")))
	})

	It("replaces the mirror list", func() {
		registry, err := gateway.NewRegistry(mirrors, gateway.PolicyStatic, nil)
		Expect(err).ToNot(HaveOccurred())

		Expect(registry.Replace([]gateway.MirrorConfig{{BaseURL: "https://only.example"}})).To(Succeed())
		Expect(registry.Names()).To(Equal([]string{"only.example"}))

		_, ok := registry.Mirror("first")
		Expect(ok).To(BeFalse())
	})

	It("parses policies", func() {
		p, err := gateway.ParsePolicy("")
		Expect(err).ToNot(HaveOccurred())
		Expect(p).To(Equal(gateway.PolicyStatic))

		_, err = gateway.ParsePolicy("fastest")
		Expect(err).To(HaveOccurred())
	})
})

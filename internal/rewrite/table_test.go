package rewrite_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mstavrakis/rewrite-gateway/internal/rewrite"
)

var _ = Describe("Table", func() {
	mustCompile := func(source, destination string, phase rewrite.Phase) *rewrite.Rule {
		rule, err := rewrite.CompileRule(source, destination, phase)
		Expect(err).NotTo(HaveOccurred())
		return rule
	}

	It("should return the first matching rule in declaration order", func() {
		table := rewrite.NewTable([]*rewrite.Rule{
			mustCompile("/api/:path*", "http://localhost:8000/api/:path*", rewrite.PhaseBeforeRouting),
			mustCompile("/api/:path*", "http://localhost:9000/api/:path*", rewrite.PhaseBeforeRouting),
		})

		target, ok := table.Match(rewrite.PhaseBeforeRouting, "/api/users")
		Expect(ok).To(BeTrue())
		Expect(target.Origin.String()).To(Equal("http://localhost:8000"))
	})

	It("should only consider rules of the requested phase", func() {
		table := rewrite.NewTable([]*rewrite.Rule{
			mustCompile("/api/:path*", "http://localhost:8000/api/:path*", rewrite.PhaseAfterRouting),
		})

		_, ok := table.Match(rewrite.PhaseBeforeRouting, "/api/users")
		Expect(ok).To(BeFalse())

		target, ok := table.Match(rewrite.PhaseAfterRouting, "/api/users")
		Expect(ok).To(BeTrue())
		Expect(target.Path).To(Equal("/api/users"))
	})

	It("should fall through rules that do not match", func() {
		table := rewrite.NewTable([]*rewrite.Rule{
			mustCompile("/admin/:path*", "http://localhost:7000/admin/:path*", rewrite.PhaseBeforeRouting),
			mustCompile("/api/:path*", "http://localhost:8000/api/:path*", rewrite.PhaseBeforeRouting),
		})

		target, ok := table.Match(rewrite.PhaseBeforeRouting, "/api/users")
		Expect(ok).To(BeTrue())
		Expect(target.Origin.String()).To(Equal("http://localhost:8000"))
	})

	It("should report no match for unrelated paths", func() {
		table := rewrite.NewTable([]*rewrite.Rule{
			mustCompile("/api/:path*", "http://localhost:8000/api/:path*", rewrite.PhaseBeforeRouting),
		})

		_, ok := table.Match(rewrite.PhaseBeforeRouting, "/dashboard")
		Expect(ok).To(BeFalse())
	})

	It("should expose its rules and length", func() {
		rules := []*rewrite.Rule{
			mustCompile("/api/:path*", "http://localhost:8000/api/:path*", rewrite.PhaseBeforeRouting),
		}
		table := rewrite.NewTable(rules)

		Expect(table.Len()).To(Equal(1))
		Expect(table.Rules()).To(Equal(rules))
	})
})

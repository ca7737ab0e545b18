package ledger

import (
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

// amount compares decimals by value
func amount(expected string) OmegaMatcher {
	return WithTransform(func(d decimal.Decimal) string { return d.String() }, Equal(expected))
}

var _ = Describe("Extractor", func() {
	var (
		extractor *Extractor
		clock     *mockTimeSource
		text      string
		result    *Ledger
	)

	BeforeEach(func() {
		clock = &mockTimeSource{now: time.Date(2025, 3, 9, 18, 0, 0, 0, time.UTC)}
		extractor = NewExtractorWithDeps(DefaultNoiseMarkers, DefaultCurrency, clock)
	})

	JustBeforeEach(func() {
		result = extractor.Extract(text)
	})

	When("a line follows the strict layout", func() {
		BeforeEach(func() {
			text = "1pc Std ballon JW 85 86000"
		})

		It("should extract every field", func() {
			Expect(result.Transactions).To(HaveLen(1))
			t := result.Transactions[0]
			Expect(t.Quantity).To(Equal("1pc"))
			Expect(t.Description).To(Equal("Std ballon JW"))
			Expect(t.UnitPrice).To(amount("85"))
			Expect(t.TotalAmount).To(amount("86000"))
			Expect(t.Currency).To(Equal("Rp"))
		})
	})

	When("the piece marker is plural", func() {
		BeforeEach(func() {
			text = "2pcs Std Ayana 85 170000"
		})

		It("should keep the whole quantity token", func() {
			Expect(result.Transactions).To(HaveLen(1))
			t := result.Transactions[0]
			Expect(t.Quantity).To(Equal("2pcs"))
			Expect(t.Description).To(Equal("Std Ayana"))
			Expect(t.UnitPrice).To(amount("85"))
			Expect(t.TotalAmount).To(amount("170000"))
		})
	})

	DescribeTable("quantity tokens",
		func(line, quantity, description string) {
			page := extractor.Extract(line)
			Expect(page.Transactions).To(HaveLen(1))
			Expect(page.Transactions[0].Quantity).To(Equal(quantity))
			Expect(page.Transactions[0].Description).To(Equal(description))
		},
		Entry("bare p", "3p Gelas kaca 10 30", "3p", "Gelas kaca"),
		Entry("ps", "4ps Piring 12.5 50", "4ps", "Piring"),
		Entry("space before marker", "3 pcs Sendok 5 15", "3 pcs", "Sendok"),
		Entry("upper case", "5PCS Balon 2 10", "5PCS", "Balon"),
	)

	When("the text carries a date", func() {
		BeforeEach(func() {
			text = "Senin 14-7-2025\n1pc Std ballon JW 85 86000\n2pcs Std Ayana 85 170000\nSelasa 15/7/2025"
		})

		It("should use the first date verbatim", func() {
			Expect(result.Date).To(Equal("14-7-2025"))
		})

		It("should stamp the date on every transaction", func() {
			Expect(result.Transactions).To(HaveLen(2))
			for _, t := range result.Transactions {
				Expect(t.Date).To(Equal("14-7-2025"))
			}
		})
	})

	When("the text has no date", func() {
		BeforeEach(func() {
			text = "1pc Std ballon JW 85 86000"
		})

		It("should fall back to the current date", func() {
			Expect(result.Date).To(Equal("09-03-2025"))
			Expect(result.Transactions[0].Date).To(Equal("09-03-2025"))
		})
	})

	When("a line is the letterhead", func() {
		BeforeEach(func() {
			text = "TANTY"
		})

		It("should produce no transactions", func() {
			Expect(result.Transactions).To(BeEmpty())
		})
	})

	When("a transaction line mentions the noise marker", func() {
		BeforeEach(func() {
			text = "1pc Tanty bag 85 86000\n1pc Std ballon JW 85 86000"
		})

		It("should skip that line regardless of its digits", func() {
			Expect(result.Transactions).To(HaveLen(1))
			Expect(result.Transactions[0].Description).To(Equal("Std ballon JW"))
		})
	})

	When("a line is shorter than five characters", func() {
		BeforeEach(func() {
			text = "1p 9\n1pc\n12 3"
		})

		It("should produce no transactions", func() {
			Expect(result.Transactions).To(BeEmpty())
		})
	})

	When("stray text follows the amounts", func() {
		BeforeEach(func() {
			text = "1pc Item85 86000 extra"
		})

		It("should salvage the line with the last two numbers", func() {
			Expect(result.Transactions).To(HaveLen(1))
			t := result.Transactions[0]
			Expect(t.Quantity).To(Equal("1pc"))
			Expect(t.Description).To(Equal("Item  extra"))
			Expect(t.UnitPrice).To(amount("85"))
			Expect(t.TotalAmount).To(amount("86000"))
		})
	})

	When("a quantity line has fewer than two numbers", func() {
		BeforeEach(func() {
			text = "1pc Item baru\n2pcs Gelas kaca"
		})

		It("should drop the line", func() {
			Expect(result.Transactions).To(BeEmpty())
		})
	})

	When("the only other number is the amount", func() {
		BeforeEach(func() {
			text = "2pcs Item 500"
		})

		It("should count the quantity digits towards the last two numbers", func() {
			Expect(result.Transactions).To(HaveLen(1))
			t := result.Transactions[0]
			Expect(t.Quantity).To(Equal("2pcs"))
			Expect(t.Description).To(Equal("Item"))
			Expect(t.UnitPrice).To(amount("2"))
			Expect(t.TotalAmount).To(amount("500"))
		})
	})

	When("OCR separates fields with Unicode whitespace", func() {
		BeforeEach(func() {
			text = "1pc\u00a0Std ballon JW 85 86000\n2pcs\vStd\u00a0Ayana 85\u2003170000"
		})

		It("should treat it as plain spaces", func() {
			Expect(result.Transactions).To(HaveLen(2))
			Expect(result.Transactions[0].Description).To(Equal("Std ballon JW"))
			Expect(result.Transactions[1].Description).To(Equal("Std Ayana"))
			Expect(result.Transactions[1].TotalAmount).To(amount("170000"))
		})
	})

	When("a line does not start with a quantity", func() {
		BeforeEach(func() {
			text = "pc Item 86000\nabc 1pc 85 86000"
		})

		It("should drop lines without a leading quantity token", func() {
			Expect(result.Transactions).To(BeEmpty())
		})
	})

	When("an amount is zero", func() {
		BeforeEach(func() {
			text = "1pc Gratis 0 0\n2pcs Bonus 0 500\n1pc Std ballon JW 85 86000"
		})

		It("should drop the line", func() {
			Expect(result.Transactions).To(HaveLen(1))
			Expect(result.Transactions[0].Description).To(Equal("Std ballon JW"))
		})
	})

	When("the text is empty", func() {
		BeforeEach(func() {
			text = ""
		})

		It("should return an empty, non-nil list", func() {
			Expect(result.Transactions).NotTo(BeNil())
			Expect(result.Transactions).To(BeEmpty())
		})
	})

	When("no line survives the filter", func() {
		BeforeEach(func() {
			text = "TANTY COLLECTION\r\nok\r\n\r\nterima kasih"
		})

		It("should return an empty list", func() {
			Expect(result.Transactions).To(BeEmpty())
		})
	})

	When("the page has many lines", func() {
		BeforeEach(func() {
			text = strings.Join([]string{
				"TANTY COLLECTION",
				"Senin 14-7-2025",
				"  1pc Std ballon JW 85 86000  ",
				"",
				"catatan",
				"2pcs Std Ayana 85 170000",
				"3pcs Std Rina 90 270000",
			}, "\r\n")
		})

		It("should keep the source line order", func() {
			Expect(result.Transactions).To(HaveLen(3))
			Expect(result.Transactions[0].Description).To(Equal("Std ballon JW"))
			Expect(result.Transactions[1].Description).To(Equal("Std Ayana"))
			Expect(result.Transactions[2].Description).To(Equal("Std Rina"))
		})

		It("should only produce positive amounts", func() {
			for _, t := range result.Transactions {
				Expect(t.UnitPrice.IsPositive()).To(BeTrue())
				Expect(t.TotalAmount.IsPositive()).To(BeTrue())
			}
		})

		It("should sum the grand total", func() {
			Expect(result.GrandTotal()).To(amount("526000"))
		})

		It("should return the same result for the same text", func() {
			Expect(extractor.Extract(text)).To(Equal(result))
		})

		It("should be safe for concurrent use", func() {
			var wg sync.WaitGroup
			results := make([]*Ledger, 8)
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i] = extractor.Extract(text)
				}(i)
			}
			wg.Wait()

			for _, r := range results {
				Expect(r).To(Equal(result))
			}
		})
	})

	When("custom noise markers and currency are configured", func() {
		BeforeEach(func() {
			extractor = NewExtractorWithDeps([]string{" TOKO MAJU ", ""}, "IDR", clock)
			text = "Toko Maju 1pc a 1 1\n1pc Tanty ballon 85 86000"
		})

		It("should use them instead of the defaults", func() {
			Expect(result.Transactions).To(HaveLen(1))
			Expect(result.Transactions[0].Currency).To(Equal("IDR"))
			Expect(extractor.Currency()).To(Equal("IDR"))
		})
	})
})

var _ = Describe("ResolveDate", func() {
	var extractor *Extractor

	BeforeEach(func() {
		extractor = NewExtractorWithDeps(nil, "", &mockTimeSource{now: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)})
	})

	DescribeTable("resolving the document date",
		func(text, expected string) {
			Expect(extractor.ResolveDate(text)).To(Equal(expected))
		},
		Entry("dash separated", "Senin 14-7-2025", "14-7-2025"),
		Entry("slash separated", "tgl 1/2/25", "1/2/25"),
		Entry("mixed separators", "03-04/2025 lunas", "03-04/2025"),
		Entry("first of several", "7-7-2025 dan 8-7-2025", "7-7-2025"),
		Entry("no calendar validation", "99-99-9999", "99-99-9999"),
		Entry("no date", "1pc Std ballon JW 85 86000", "01-12-2024"),
	)

	It("should default the currency", func() {
		Expect(extractor.Currency()).To(Equal(DefaultCurrency))
	})
})

var _ = Describe("NormalizeLines", func() {
	It("should split on every newline style, trim and drop blank lines", func() {
		Expect(NormalizeLines("a\r\n  b  \rc\n\n   \nd")).To(Equal([]string{"a", "b", "c", "d"}))
	})

	It("should turn Unicode spaces into plain spaces", func() {
		Expect(NormalizeLines("1pc\u00a0Std\vAyana\u2003 85\u00a0")).To(Equal([]string{"1pc Std Ayana  85"}))
	})

	It("should return an empty slice for empty text", func() {
		Expect(NormalizeLines("")).To(BeEmpty())
	})
})

var _ = Describe("matchLine", func() {
	It("should prefer the strict match", func() {
		m, ok := matchLine("1pc Std ballon JW 85 86000")
		Expect(ok).To(BeTrue())
		Expect(m.description).To(Equal("Std ballon JW"))
	})

	It("should salvage when the strict layout is broken", func() {
		m, ok := matchLine("2pcs Std-Ayana 85, 170000")
		Expect(ok).To(BeTrue())
		Expect(m.description).To(Equal("Std-Ayana ,"))
		Expect(m.unitPrice).To(amount("85"))
		Expect(m.totalAmount).To(amount("170000"))
	})

	It("should reject lines without a quantity token", func() {
		_, ok := matchLine("Std ballon JW 85 86000")
		Expect(ok).To(BeFalse())
	})
})

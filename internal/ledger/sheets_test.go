package ledger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
)

var _ = Describe("GoogleSheet", func() {
	var (
		server       *ghttp.Server
		sheet        *GoogleSheet
		transactions []Transaction
		appendedRows [][]interface{}
		appendQuery  map[string]string
	)

	respondWithValues := func(values string) http.HandlerFunc {
		return ghttp.CombineHandlers(
			ghttp.VerifyRequest("GET", HaveSuffix("/v4/spreadsheets/sheet-1/values/A:F")),
			ghttp.RespondWith(http.StatusOK, `{"range":"Sheet1!A1:F1"`+values+`}`, http.Header{"Content-Type": {"application/json"}}),
		)
	}

	captureAppend := ghttp.CombineHandlers(
		ghttp.VerifyRequest("POST", HaveSuffix("/v4/spreadsheets/sheet-1/values/A1:append")),
		func(w http.ResponseWriter, r *http.Request) {
			appendQuery = map[string]string{
				"valueInputOption": r.URL.Query().Get("valueInputOption"),
				"insertDataOption": r.URL.Query().Get("insertDataOption"),
			}
			body, err := io.ReadAll(r.Body)
			Expect(err).NotTo(HaveOccurred())
			var payload struct {
				Values [][]interface{} `json:"values"`
			}
			Expect(json.Unmarshal(body, &payload)).To(Succeed())
			appendedRows = payload.Values
		},
		ghttp.RespondWith(http.StatusOK, `{"spreadsheetId":"sheet-1"}`, http.Header{"Content-Type": {"application/json"}}),
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		appendedRows = nil
		appendQuery = nil

		var err error
		sheet, err = NewGoogleSheet(context.Background(), "sheet-1",
			option.WithEndpoint(server.URL()+"/"),
			option.WithoutAuthentication(),
		)
		Expect(err).NotTo(HaveOccurred())

		transactions = []Transaction{
			{Date: "14-7-2025", Quantity: "1pc", Description: "Std ballon JW", UnitPrice: decimal.NewFromInt(85), TotalAmount: decimal.NewFromInt(86000), Currency: "Rp"},
			{Date: "14-7-2025", Quantity: "2pcs", Description: "Std Ayana", UnitPrice: decimal.RequireFromString("85.4"), TotalAmount: decimal.NewFromInt(170000), Currency: "Rp"},
		}
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("NewGoogleSheet", func() {
		It("should require a spreadsheet id", func() {
			_, err := NewGoogleSheet(context.Background(), "", option.WithoutAuthentication())
			Expect(err).To(MatchError(ContainSubstring("spreadsheet id is required")))
		})
	})

	Describe("AppendTransactions", func() {
		var (
			added int
			err   error
		)

		JustBeforeEach(func() {
			added, err = sheet.AppendTransactions(context.Background(), transactions)
		})

		When("the sheet is empty", func() {
			BeforeEach(func() {
				server.AppendHandlers(respondWithValues(""), captureAppend)
			})

			It("should write the header before the rows", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(added).To(Equal(2))
				Expect(appendedRows).To(HaveLen(3))
				Expect(appendedRows[0]).To(Equal([]interface{}{"Date", "Quantity", "Description", "Unit Price", "Total Amount", "Currency"}))
			})

			It("should write amounts without decimals", func() {
				Expect(appendedRows[1]).To(Equal([]interface{}{"14-7-2025", "1pc", "Std ballon JW", "85", "86000", "Rp"}))
				Expect(appendedRows[2]).To(Equal([]interface{}{"14-7-2025", "2pcs", "Std Ayana", "85", "170000", "Rp"}))
			})

			It("should append raw values as new rows", func() {
				Expect(appendQuery).To(HaveKeyWithValue("valueInputOption", "RAW"))
				Expect(appendQuery).To(HaveKeyWithValue("insertDataOption", "INSERT_ROWS"))
			})
		})

		When("the sheet already has a header", func() {
			BeforeEach(func() {
				server.AppendHandlers(respondWithValues(`,"values":[["Date","Quantity"]]`), captureAppend)
			})

			It("should only append the rows", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(appendedRows).To(HaveLen(2))
				Expect(appendedRows[0][2]).To(Equal("Std ballon JW"))
			})
		})

		When("there are no transactions", func() {
			BeforeEach(func() {
				transactions = nil
			})

			It("should not call the API", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(added).To(BeZero())
				Expect(server.ReceivedRequests()).To(BeEmpty())
			})
		})

		When("the API rejects the request", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusForbidden,
					`{"error":{"code":403,"message":"The caller does not have permission","status":"PERMISSION_DENIED"}}`,
					http.Header{"Content-Type": {"application/json"}},
				))
			})

			It("should return an error", func() {
				Expect(err).To(MatchError(ContainSubstring("reading sheet values")))
				Expect(added).To(BeZero())
			})
		})
	})

	Describe("Ping", func() {
		When("the spreadsheet is reachable", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest("GET", HaveSuffix("/v4/spreadsheets/sheet-1")),
					ghttp.RespondWith(http.StatusOK, `{"spreadsheetId":"sheet-1"}`, http.Header{"Content-Type": {"application/json"}}),
				))
			})

			It("should succeed", func() {
				Expect(sheet.Ping(context.Background())).To(Succeed())
			})
		})

		When("the spreadsheet is not found", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound,
					`{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`,
					http.Header{"Content-Type": {"application/json"}},
				))
			})

			It("should return an error", func() {
				Expect(sheet.Ping(context.Background())).To(MatchError(ContainSubstring("getting spreadsheet")))
			})
		})
	})
})

var _ = Describe("GoogleCredentialsOption", func() {
	It("should return an option for inline JSON and for file paths", func() {
		Expect(GoogleCredentialsOption(` {"type":"service_account"}`)).NotTo(BeNil())
		Expect(GoogleCredentialsOption("/etc/ledger-bot/credentials.json")).NotTo(BeNil())
	})
})

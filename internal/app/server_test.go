package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tnishida/keihi-scan/internal/expense"
	"github.com/tnishida/keihi-scan/internal/ledger"
	"github.com/tnishida/keihi-scan/internal/scanning"
)

var _ = Describe("Server", func() {
	var (
		server  *Server
		scanner *stubScanner
	)

	newMultipartUpload := func(filename string, data []byte) *http.Request {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		part, err := writer.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		req := httptest.NewRequest("POST", "/api/receipts", &body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req
	}

	commitRequest := func(rec expense.Record, sourceFile string) *http.Request {
		payload := map[string]any{
			"date":        rec.Date,
			"payee":       rec.Payee,
			"content":     rec.Content,
			"amount":      rec.Amount,
			"source_file": sourceFile,
		}
		body, err := json.Marshal(payload)
		Expect(err).NotTo(HaveOccurred())
		req := httptest.NewRequest("POST", "/api/entries", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	BeforeEach(func() {
		dir := GinkgoT().TempDir()
		workbookPath := filepath.Join(dir, "expense.xlsx")
		writeWorkbook(workbookPath)

		spool, err := NewLocalStorage(filepath.Join(dir, "spool"))
		Expect(err).NotTo(HaveOccurred())

		scanner = &stubScanner{
			record: &expense.Record{
				Date:    "2025/12/03",
				Payee:   "業務スーパー金町店（シマダヤ）",
				Content: "業務用みそ汁",
				Amount:  3330,
			},
		}
		service := NewServiceWithDeps(workbookPath, scanner, spool, &memoryHistory{},
			&fixedIDGenerator{},
			&fixedTimeSource{t: time.Date(2025, 12, 3, 10, 0, 0, 0, time.UTC)},
		)
		server = NewServer(service, BasicAuth{})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			dir := GinkgoT().TempDir()
			workbookPath := filepath.Join(dir, "expense.xlsx")
			writeWorkbook(workbookPath)
			spool, err := NewLocalStorage(filepath.Join(dir, "spool"))
			Expect(err).NotTo(HaveOccurred())
			service := NewService(workbookPath, scanner, spool, &memoryHistory{})
			server = NewServer(service, BasicAuth{Username: "user", Password: "secret"})
		})

		It("rejects requests without credentials", func() {
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest("GET", "/api/entries", nil))
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(rec.Header().Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("rejects wrong credentials", func() {
			req := httptest.NewRequest("GET", "/api/entries", nil)
			req.SetBasicAuth("user", "wrong")
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("accepts correct credentials", func() {
			req := httptest.NewRequest("GET", "/api/entries", nil)
			req.SetBasicAuth("user", "secret")
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("POST /api/receipts", func() {
		When("the upload is a valid image", func() {
			It("returns the pending record and the source filename", func() {
				rec := httptest.NewRecorder()
				server.ServeHTTP(rec, newMultipartUpload("receipt.png", pngBytes()))
				Expect(rec.Code).To(Equal(http.StatusOK))

				var resp struct {
					Record     expense.Record `json:"record"`
					SourceFile string         `json:"source_file"`
				}
				Expect(json.NewDecoder(rec.Body).Decode(&resp)).To(Succeed())
				Expect(resp.Record.Payee).To(Equal("業務スーパー金町店（シマダヤ）"))
				Expect(resp.Record.Amount).To(Equal(3330.0))
				Expect(resp.SourceFile).To(Equal("receipt.png"))
			})

			It("does not write to the workbook", func() {
				rec := httptest.NewRecorder()
				server.ServeHTTP(rec, newMultipartUpload("receipt.png", pngBytes()))
				Expect(rec.Code).To(Equal(http.StatusOK))

				listRec := httptest.NewRecorder()
				server.ServeHTTP(listRec, httptest.NewRequest("GET", "/api/entries", nil))
				var list struct {
					Entries []ledger.Entry `json:"entries"`
				}
				Expect(json.NewDecoder(listRec.Body).Decode(&list)).To(Succeed())
				Expect(list.Entries).To(BeEmpty())
			})
		})

		When("the extension is not allowed", func() {
			It("returns 400 with a JSON error", func() {
				rec := httptest.NewRecorder()
				server.ServeHTTP(rec, newMultipartUpload("receipt.gif", pngBytes()))
				Expect(rec.Code).To(Equal(http.StatusBadRequest))

				var resp map[string]string
				Expect(json.NewDecoder(rec.Body).Decode(&resp)).To(Succeed())
				Expect(resp["error"]).To(ContainSubstring("unsupported image format"))
			})
		})

		When("the provider is unreachable", func() {
			BeforeEach(func() {
				scanner.err = &scanning.ScanError{Kind: scanning.KindTransport, Err: fmt.Errorf("connection refused")}
			})

			It("returns 502", func() {
				rec := httptest.NewRecorder()
				server.ServeHTTP(rec, newMultipartUpload("receipt.png", pngBytes()))
				Expect(rec.Code).To(Equal(http.StatusBadGateway))
			})
		})

		When("the response cannot be parsed", func() {
			BeforeEach(func() {
				scanner.err = &scanning.ScanError{Kind: scanning.KindParse, Err: fmt.Errorf("no JSON object in response")}
			})

			It("returns 502", func() {
				rec := httptest.NewRecorder()
				server.ServeHTTP(rec, newMultipartUpload("receipt.png", pngBytes()))
				Expect(rec.Code).To(Equal(http.StatusBadGateway))
			})
		})

		When("no file field is present", func() {
			It("returns 400", func() {
				var body bytes.Buffer
				writer := multipart.NewWriter(&body)
				Expect(writer.WriteField("other", "value")).To(Succeed())
				Expect(writer.Close()).To(Succeed())

				req := httptest.NewRequest("POST", "/api/receipts", &body)
				req.Header.Set("Content-Type", writer.FormDataContentType())
				rec := httptest.NewRecorder()
				server.ServeHTTP(rec, req)
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("POST /api/entries", func() {
		validRecord := expense.Record{
			Date:    "2025/12/03",
			Payee:   "業務スーパー金町店（シマダヤ）",
			Content: "業務用みそ汁",
			Amount:  3330,
		}

		When("the record is valid", func() {
			It("returns 201 with the row and total", func() {
				rec := httptest.NewRecorder()
				server.ServeHTTP(rec, commitRequest(validRecord, "receipt.png"))
				Expect(rec.Code).To(Equal(http.StatusCreated))

				var resp struct {
					Row   int     `json:"row"`
					Total float64 `json:"total"`
				}
				Expect(json.NewDecoder(rec.Body).Decode(&resp)).To(Succeed())
				Expect(resp.Row).To(Equal(11))
				Expect(resp.Total).To(Equal(3330.0))
			})
		})

		When("the record fails validation", func() {
			It("returns 400", func() {
				bad := validRecord
				bad.Amount = 0
				rec := httptest.NewRecorder()
				server.ServeHTTP(rec, commitRequest(bad, ""))
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
			})
		})

		When("the table is full", func() {
			BeforeEach(func() {
				for i := 0; i < ledger.Capacity; i++ {
					rec := httptest.NewRecorder()
					server.ServeHTTP(rec, commitRequest(validRecord, ""))
					Expect(rec.Code).To(Equal(http.StatusCreated))
				}
			})

			It("returns 409", func() {
				rec := httptest.NewRecorder()
				server.ServeHTTP(rec, commitRequest(validRecord, ""))
				Expect(rec.Code).To(Equal(http.StatusConflict))
			})
		})

		When("the body is not JSON", func() {
			It("returns 400", func() {
				req := httptest.NewRequest("POST", "/api/entries", bytes.NewReader([]byte("not json")))
				rec := httptest.NewRecorder()
				server.ServeHTTP(rec, req)
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("GET /api/entries", func() {
		When("entries exist", func() {
			BeforeEach(func() {
				rec := httptest.NewRecorder()
				server.ServeHTTP(rec, commitRequest(expense.Record{
					Date: "2025/12/03", Payee: "店", Content: "品", Amount: 500,
				}, ""))
				Expect(rec.Code).To(Equal(http.StatusCreated))
			})

			It("reports entries, the total and the remaining capacity", func() {
				rec := httptest.NewRecorder()
				server.ServeHTTP(rec, httptest.NewRequest("GET", "/api/entries", nil))
				Expect(rec.Code).To(Equal(http.StatusOK))

				var resp struct {
					Entries   []ledger.Entry `json:"entries"`
					Total     float64        `json:"total"`
					Remaining int            `json:"remaining"`
				}
				Expect(json.NewDecoder(rec.Body).Decode(&resp)).To(Succeed())
				Expect(resp.Entries).To(HaveLen(1))
				Expect(resp.Total).To(Equal(500.0))
				Expect(resp.Remaining).To(Equal(15))
			})
		})
	})

	Describe("GET /api/history", func() {
		It("returns an empty array when nothing was committed", func() {
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest("GET", "/api/history", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))

			body, err := io.ReadAll(rec.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(MatchJSON("[]"))
		})

		It("lists committed entries", func() {
			commitRec := httptest.NewRecorder()
			server.ServeHTTP(commitRec, commitRequest(expense.Record{
				Date: "2025/12/03", Payee: "店", Content: "品", Amount: 500,
			}, "receipt.png"))
			Expect(commitRec.Code).To(Equal(http.StatusCreated))

			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest("GET", "/api/history", nil))
			var commits []*Commit
			Expect(json.NewDecoder(rec.Body).Decode(&commits)).To(Succeed())
			Expect(commits).To(HaveLen(1))
			Expect(commits[0].SourceFile).To(Equal("receipt.png"))
		})
	})

	Describe("GET /", func() {
		It("serves the HTML interface", func() {
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(ContainSubstring("text/html"))
		})
	})
})

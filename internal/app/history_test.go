package app

import (
	"fmt"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltHistory", func() {
	var history *BoltHistory

	BeforeEach(func() {
		path := filepath.Join(GinkgoT().TempDir(), "history.db")
		var err error
		history, err = NewBoltHistory(path)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(history.Close)
	})

	When("the log is empty", func() {
		It("lists no commits", func() {
			commits, err := history.ListCommits()
			Expect(err).NotTo(HaveOccurred())
			Expect(commits).To(BeEmpty())
		})
	})

	When("commits have been saved", func() {
		BeforeEach(func() {
			for i := 1; i <= 3; i++ {
				commit := &Commit{
					ID:        fmt.Sprintf("id-%d", i),
					Row:       10 + i,
					Date:      "2025/12/03",
					Payee:     "業務スーパー金町店",
					Content:   "消耗品",
					Amount:    float64(i * 100),
					CreatedAt: time.Date(2025, 12, 3, 10, i, 0, 0, time.UTC),
				}
				Expect(history.SaveCommit(commit)).To(Succeed())
			}
		})

		It("lists them in insertion order", func() {
			commits, err := history.ListCommits()
			Expect(err).NotTo(HaveOccurred())
			Expect(commits).To(HaveLen(3))
			Expect(commits[0].ID).To(Equal("id-1"))
			Expect(commits[1].ID).To(Equal("id-2"))
			Expect(commits[2].ID).To(Equal("id-3"))
		})

		It("round-trips all fields", func() {
			commits, err := history.ListCommits()
			Expect(err).NotTo(HaveOccurred())
			Expect(commits[0].Row).To(Equal(11))
			Expect(commits[0].Payee).To(Equal("業務スーパー金町店"))
			Expect(commits[0].Amount).To(Equal(100.0))
			Expect(commits[0].CreatedAt.Equal(time.Date(2025, 12, 3, 10, 1, 0, 0, time.UTC))).To(BeTrue())
		})
	})
})

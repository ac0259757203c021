package app

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		storage *LocalStorage
		baseDir string
	)

	BeforeEach(func() {
		baseDir = filepath.Join(GinkgoT().TempDir(), "spool")
		var err error
		storage, err = NewLocalStorage(baseDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewLocalStorage", func() {
		It("creates the base directory", func() {
			info, err := os.Stat(baseDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})
	})

	Describe("Save", func() {
		It("writes the file and returns its name", func() {
			name, err := storage.Save("receipt.png", []byte("payload"))
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("receipt.png"))

			data, err := os.ReadFile(filepath.Join(baseDir, "receipt.png"))
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("payload")))
		})
	})

	Describe("Get", func() {
		When("the file exists", func() {
			BeforeEach(func() {
				_, err := storage.Save("receipt.png", []byte("payload"))
				Expect(err).NotTo(HaveOccurred())
			})

			It("returns its contents", func() {
				data, err := storage.Get("receipt.png")
				Expect(err).NotTo(HaveOccurred())
				Expect(data).To(Equal([]byte("payload")))
			})
		})

		When("the file does not exist", func() {
			It("returns an error", func() {
				_, err := storage.Get("missing.png")
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Delete", func() {
		When("the file exists", func() {
			BeforeEach(func() {
				_, err := storage.Save("receipt.png", []byte("payload"))
				Expect(err).NotTo(HaveOccurred())
			})

			It("removes it", func() {
				Expect(storage.Delete("receipt.png")).To(Succeed())
				_, err := os.Stat(filepath.Join(baseDir, "receipt.png"))
				Expect(os.IsNotExist(err)).To(BeTrue())
			})
		})

		When("the file does not exist", func() {
			It("returns an error", func() {
				Expect(storage.Delete("missing.png")).NotTo(Succeed())
			})
		})
	})
})

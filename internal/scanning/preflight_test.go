package scanning

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// pngBytes renders a small valid PNG for decode checks
func pngBytes() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

func validationKind(err error) FailureKind {
	var scanErr *ScanError
	ExpectWithOffset(1, errors.As(err, &scanErr)).To(BeTrue())
	return scanErr.Kind
}

var _ = Describe("CheckImage", func() {
	var (
		data     []byte
		filename string
		err      error
	)

	BeforeEach(func() {
		data = pngBytes()
		filename = "receipt.png"
	})

	JustBeforeEach(func() {
		err = CheckImage(data, filename)
	})

	When("the image is a valid PNG", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("the extension is not on the allow-list", func() {
		BeforeEach(func() {
			filename = "receipt.gif"
		})

		It("rejects before decoding", func() {
			Expect(err).To(HaveOccurred())
			Expect(validationKind(err)).To(Equal(KindValidation))
			Expect(err.Error()).To(ContainSubstring("unsupported image format"))
		})
	})

	When("the extension is upper-case", func() {
		BeforeEach(func() {
			filename = "IMG_0001.PNG"
		})

		It("is accepted", func() {
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("the data exceeds 10MiB", func() {
		BeforeEach(func() {
			data = make([]byte, maxImageBytes+1)
		})

		It("rejects on size", func() {
			Expect(err).To(HaveOccurred())
			Expect(validationKind(err)).To(Equal(KindValidation))
			Expect(err.Error()).To(ContainSubstring("too large"))
		})
	})

	When("the bytes do not decode as an image", func() {
		BeforeEach(func() {
			data = []byte("this is not an image")
		})

		It("rejects as corrupt", func() {
			Expect(err).To(HaveOccurred())
			Expect(validationKind(err)).To(Equal(KindValidation))
			Expect(err.Error()).To(ContainSubstring("corrupt"))
		})
	})

})

var _ = Describe("CheckImageFile", func() {
	var (
		path string
		err  error
	)

	JustBeforeEach(func() {
		err = CheckImageFile(path)
	})

	When("the file exists and is a valid image", func() {
		BeforeEach(func() {
			path = filepath.Join(GinkgoT().TempDir(), "receipt.png")
			Expect(os.WriteFile(path, pngBytes(), 0644)).To(Succeed())
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("the file does not exist", func() {
		BeforeEach(func() {
			path = filepath.Join(GinkgoT().TempDir(), "missing.png")
		})

		It("rejects with a not-found message and no decode attempt", func() {
			Expect(err).To(HaveOccurred())
			Expect(validationKind(err)).To(Equal(KindValidation))
			Expect(err.Error()).To(ContainSubstring("file not found"))
		})
	})
})

package knowledge

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	apperrors "github.com/aihub/docsearch/internal/errors"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

var pdfHeader = []byte("%PDF")

// TextExtractor 从文件内容中提取文本
type TextExtractor interface {
	ExtractText(data []byte) (string, error)
}

// SetPDFLicense 设置unipdf的计量许可证
func SetPDFLicense(key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	return license.SetMeteredKey(key)
}

// IsPDFFilename 按扩展名判断是否为PDF
func IsPDFFilename(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".pdf"
}

// PDFExtractor PDF文本提取
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractText 提取全部页面文本并折叠空白；空输入、缺少PDF头或无文本时返回错误
func (p *PDFExtractor) ExtractText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperrors.NewInvalidFileFormatError("empty or invalid buffer provided")
	}
	if !bytes.HasPrefix(data, pdfHeader) {
		return "", apperrors.NewInvalidFileFormatError("invalid PDF file: missing PDF header")
	}

	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", apperrors.NewInvalidFileFormatError("failed to parse PDF").WithCause(err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", apperrors.NewInvalidFileFormatError("failed to read PDF pages").WithCause(err)
	}

	var textBuilder strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return "", apperrors.NewInvalidFileFormatError(fmt.Sprintf("failed to read PDF page %d", i)).WithCause(err)
		}

		ex, err := extractor.New(page)
		if err != nil {
			return "", apperrors.NewInvalidFileFormatError(fmt.Sprintf("failed to extract PDF page %d", i)).WithCause(err)
		}

		text, err := ex.ExtractText()
		if err != nil {
			return "", apperrors.NewInvalidFileFormatError(fmt.Sprintf("failed to extract PDF page %d", i)).WithCause(err)
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}

	clean := normalizeWhitespace(textBuilder.String())
	if clean == "" {
		return "", apperrors.NewInvalidFileFormatError("no text content found in PDF")
	}
	return clean, nil
}

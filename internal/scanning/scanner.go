package scanning

import (
	"fmt"

	"github.com/tnishida/keihi-scan/internal/expense"
)

// extractionPrompt is the shared system instruction used by all LLM providers.
// It is kept in Japanese to match the receipts it reads.
const extractionPrompt = `あなたはレシート情報抽出の専門家です。
レシート画像から以下の情報を正確に抽出してJSON形式で返してください。

必須フィールド:
- date: 日付（YYYY/MM/DD形式）
- payee: 支払先/店舗名
- content: 支払内容/品目（複数ある場合はカンマ区切り）
- amount: 合計金額（数値のみ）

注意事項:
- 日付が不明な場合は今日の日付を使用
- 金額は消費税込みの合計金額を抽出
- 支払先は正式な店舗名を使用
- 支払内容は簡潔に（例: 文房具、交通費、飲食費など）`

// extractionInstruction is the short user-turn request sent with the image.
const extractionInstruction = "このレシートから日付、支払先、支払内容、金額を抽出してJSON形式で返してください。"

// Extraction over creativity: responses are bounded and sampling is kept
// near-deterministic on every provider.
const (
	maxResponseTokens = 500
	temperature       = 0.1
)

// FailureKind classifies why a scan did not produce a record.
type FailureKind string

const (
	// KindValidation means the image itself was rejected before any network call.
	KindValidation FailureKind = "validation"
	// KindTransport means the inference service was unreachable, unauthorized
	// or rate-limited. Single attempt, never retried here.
	KindTransport FailureKind = "transport"
	// KindParse means the response held no decodable payload.
	KindParse FailureKind = "parse"
	// KindField means the payload decoded but a field failed normalization.
	KindField FailureKind = "field"
)

// ScanError wraps a scan failure with its classification.
type ScanError struct {
	Kind FailureKind
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Scanner analyzes a receipt image and extracts a normalized expense record.
// There is no partial success: a complete record or a classified error.
type Scanner interface {
	ScanReceipt(imageData []byte, contentType string) (*expense.Record, error)
	Close() error
}

// finishScan runs the shared response pipeline: locate and decode the payload
// embedded in the model's free text, then normalize its fields.
func finishScan(responseText string) (*expense.Record, error) {
	switch payload := DecodePayload(responseText).(type) {
	case *ParsedPayload:
		record, err := expense.Normalize(payload.Fields)
		if err != nil {
			return nil, &ScanError{Kind: KindField, Err: err}
		}
		return record, nil
	case *Unparseable:
		return nil, &ScanError{Kind: KindParse, Err: fmt.Errorf("no JSON payload in response: %.120q", payload.Text)}
	default:
		return nil, &ScanError{Kind: KindParse, Err: fmt.Errorf("unexpected payload type")}
	}
}

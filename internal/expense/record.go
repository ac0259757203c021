package expense

// Record is a confirmed-or-pending expense line, the four fields the
// 立替経費精算書 template knows about.
type Record struct {
	Date    string  `json:"date"` // YYYY/MM/DD
	Payee   string  `json:"payee"`
	Content string  `json:"content"`
	Amount  float64 `json:"amount"`
}

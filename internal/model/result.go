// internal/model/result.go
package model

const (
	StatusSent   = "Sent"
	StatusFailed = "Failed"
)

// SendResult is one row of a batch report, attributed to a single recipient.
type SendResult struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Status  string `json:"status"` // Sent, Failed
	Message string `json:"message"`
}

// BatchReport summarises one dispatch pass.
type BatchReport struct {
	Sent    int          `json:"sent"`
	Failed  int          `json:"failed"`
	Results []SendResult `json:"results"`
}

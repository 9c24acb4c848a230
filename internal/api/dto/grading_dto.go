package dto

import "time"

// ================== Grading Service 外部报文 ==================

// GradingProgressResponse 送评进度（GET /submissions/{number}/progress）
type GradingProgressResponse struct {
	SubmissionNumber   string                `json:"submissionNumber"`
	OrderNumber        string                `json:"orderNumber"`
	ServiceLevel       string                `json:"serviceLevel"`
	CurrentStep        string                `json:"currentStep"`
	Steps              []GradingProgressStep `json:"steps"`
	ProblemOrder       bool                  `json:"problemOrder"`
	AccountingHold     bool                  `json:"accountingHold"`
	ShipTrackingNumber string                `json:"shipTrackingNumber"`
	ShippedDate        *time.Time            `json:"shippedDate"`
}

// GradingProgressStep 外部流程节点
type GradingProgressStep struct {
	Name        string     `json:"name"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt"`
}

// StepNames 外部节点名（保持外部顺序）
func (r *GradingProgressResponse) StepNames() []string {
	names := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		names = append(names, s.Name)
	}
	return names
}

// GradingCertificateResponse 证书信息（GET /certificates/{cert}）
type GradingCertificateResponse struct {
	CertNumber string   `json:"certNumber"`
	Grade      string   `json:"grade"`
	Year       string   `json:"year"`
	Brand      string   `json:"brand"`
	Subject    string   `json:"subject"`
	CardNumber string   `json:"cardNumber"`
	ImageURLs  []string `json:"imageUrls"` // 正反面扫描图
}

package search

// Result 外部查詢服務回傳的成分候選資料
type Result struct {
	Name        string   `json:"name"`
	Purpose     string   `json:"purpose"`
	SafetyScore int      `json:"safety_score"`
	Concerns    []string `json:"concerns"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
}

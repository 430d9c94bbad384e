package workflow

// Route 依固定優先序決定下一個階段。
// 除了重試路徑上的計數器與回饋搬移外沒有副作用，對任何可達狀態都有定義
func Route(s *State) Decision {
	switch {
	case !s.ResearchDone:
		return DecisionResearch

	case !s.ReportDone:
		return DecisionReport

	case !s.Validated:
		return DecisionValidate

	case s.Validation != nil && s.Validation.Approved:
		return DecisionDone

	case s.ReportAttempts < s.MaxRetries:
		// 驗證退回且還有重試額度：帶著回饋重新生成報告
		s.ReportAttempts++
		s.Validated = false
		if s.Validation != nil {
			s.Feedback = s.Validation.Feedback
		}
		return DecisionReport

	default:
		// 重試額度用盡，以部分結果收尾
		s.Partial = true
		return DecisionDone
	}
}

package model

// AnalysisResult 是简历与职位描述匹配分析的结构化结果。
type AnalysisResult struct {
	MatchScore             int      `json:"match_score"`
	TechnicalGaps          []string `json:"technical_gaps"`
	ProfessionalAssessment string   `json:"professional_assessment"`
	StrategicProjectIdea   string   `json:"strategic_project_idea"`
	KeyStrength            string   `json:"key_strength"`
}

// Phase 是路线图中的一个阶段。
type Phase struct {
	Title string `json:"title"`
	Task  string `json:"task"`
}

// Roadmap 固定包含三个阶段：搭建/MVP、核心逻辑、优化。
type Roadmap struct {
	Phases []Phase `json:"phases"`
}

package service

import (
	"fmt"
	"strings"

	"careerforge-go/internal/model"
)

// buildResumeContext 按检索顺序用换行拼接分块内容，不做截断。
func buildResumeContext(docs []model.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, "\n")
}

func buildAnalysisPrompt(resumeContext, jobDescription string) string {
	return fmt.Sprintf(`SYSTEM: You are a Senior Technical Architect and Hiring Manager.
You evaluate candidates based on technical evidence, architectural depth, and stack alignment.
Your tone is objective, professional, and highly analytical.

TASK: Perform a detailed Gap Analysis between the provided RESUME CONTEXT and the JOB DESCRIPTION.
1. Identify exact technical misalignments.
2. Acknowledge foundational strengths.
3. Suggest high-impact architectural improvements.
If the candidate's primary stack matches the primary stack of the job, the match_score is usually above 70.

RESUME CONTEXT:
%s

JOB DESCRIPTION:
%s

RESPONSE FORMAT: You MUST return ONLY a valid JSON object with exactly these keys. No intro, no outro.
{
    "match_score": <integer 0-100>,
    "technical_gaps": [<list of specific missing technologies or concepts>],
    "professional_assessment": "<2-3 sentences of objective feedback on technical fit and experience depth>",
    "strategic_project_idea": "<one specific, complex project idea that would bridge the identified gaps>",
    "key_strength": "<the most impressive technical accomplishment found in the context>"
}`, resumeContext, jobDescription)
}

func buildRoadmapPrompt(projectIdea string, technicalGaps []string) string {
	gaps := "none"
	if len(technicalGaps) > 0 {
		gaps = strings.Join(technicalGaps, ", ")
	}
	return fmt.Sprintf(`SYSTEM: You are a Senior Technical Mentor. Return ONLY a JSON object.
TASK: Create a 3-phase implementation roadmap for the PROJECT IDEA so that the candidate closes the TECHNICAL GAPS.
Phase 1 covers setup and the MVP, phase 2 the core logic, phase 3 optimization.
Each task must name the concrete technologies from the TECHNICAL GAPS it exercises.

PROJECT IDEA:
%s

TECHNICAL GAPS:
%s

RESPONSE FORMAT: exactly 3 phases, no other keys.
{
    "phases": [
        {"title": "<phase title>", "task": "<concrete task>"},
        {"title": "<phase title>", "task": "<concrete task>"},
        {"title": "<phase title>", "task": "<concrete task>"}
    ]
}`, projectIdea, gaps)
}

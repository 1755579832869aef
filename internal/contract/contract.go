// Package contract 对模型输出做严格的 JSON Schema 校验，并解码为强类型结构。
// 输出不做任何修复：不去除 Markdown 代码块，不补全字段，不截断分数。
package contract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"careerforge-go/internal/apperror"
	"careerforge-go/internal/model"
)

const analysisSchemaJSON = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["match_score", "technical_gaps", "professional_assessment", "strategic_project_idea", "key_strength"],
  "properties": {
    "match_score": {"type": "integer", "minimum": 0, "maximum": 100},
    "technical_gaps": {"type": "array", "items": {"type": "string"}},
    "professional_assessment": {"type": "string"},
    "strategic_project_idea": {"type": "string"},
    "key_strength": {"type": "string"}
  }
}`

const roadmapSchemaJSON = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["phases"],
  "properties": {
    "phases": {
      "type": "array",
      "minItems": 3,
      "maxItems": 3,
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["title", "task"],
        "properties": {
          "title": {"type": "string", "minLength": 1},
          "task": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var (
	analysisSchema = mustSchema(analysisSchemaJSON)
	roadmapSchema  = mustSchema(roadmapSchemaJSON)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("contract: invalid schema: %v", err))
	}
	return s
}

// validate 返回的错误都属于 KindMalformedOutput。
func validate(op string, schema *gojsonschema.Schema, raw string) error {
	result, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return apperror.New(apperror.KindMalformedOutput, op, fmt.Errorf("模型输出不是合法的 JSON: %w", err))
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return apperror.Newf(apperror.KindMalformedOutput, op, "模型输出不符合约定格式: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// DecodeAnalysis 校验并解码分析结果。
func DecodeAnalysis(raw string) (*model.AnalysisResult, error) {
	const op = "contract.DecodeAnalysis"
	if err := validate(op, analysisSchema, raw); err != nil {
		return nil, err
	}
	// 85.0 这样的整数值能通过 schema，但不能直接解码到 int。
	var aux struct {
		MatchScore             float64  `json:"match_score"`
		TechnicalGaps          []string `json:"technical_gaps"`
		ProfessionalAssessment string   `json:"professional_assessment"`
		StrategicProjectIdea   string   `json:"strategic_project_idea"`
		KeyStrength            string   `json:"key_strength"`
	}
	if err := json.Unmarshal([]byte(raw), &aux); err != nil {
		return nil, apperror.New(apperror.KindMalformedOutput, op, err)
	}
	gaps := aux.TechnicalGaps
	if gaps == nil {
		gaps = []string{}
	}
	return &model.AnalysisResult{
		MatchScore:             int(aux.MatchScore),
		TechnicalGaps:          gaps,
		ProfessionalAssessment: aux.ProfessionalAssessment,
		StrategicProjectIdea:   aux.StrategicProjectIdea,
		KeyStrength:            aux.KeyStrength,
	}, nil
}

// DecodeRoadmap 校验并解码路线图，要求恰好三个阶段。
func DecodeRoadmap(raw string) (*model.Roadmap, error) {
	const op = "contract.DecodeRoadmap"
	if err := validate(op, roadmapSchema, raw); err != nil {
		return nil, err
	}
	var rm model.Roadmap
	if err := json.Unmarshal([]byte(raw), &rm); err != nil {
		return nil, apperror.New(apperror.KindMalformedOutput, op, err)
	}
	return &rm, nil
}

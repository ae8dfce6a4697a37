package eval

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jantenpas/llm-eval-studio/internal/models"
)

// ErrInvalidSuite reports a structurally invalid test-case document. The
// error is fatal to the pipeline call that loaded it; nothing is invoked
// for any case.
var ErrInvalidSuite = errors.New("invalid test case document")

// suiteSchema is the contract for external test-case documents: an array of
// objects carrying only known fields, each with input and expected_output.
const suiteSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "id": {"type": "string"},
      "input": {"type": "string"},
      "expected_output": {"type": "string"},
      "scoring_method": {"type": "string", "enum": ["exact_match", "llm_judge", "fuzzy"]},
      "tags": {"type": "array", "items": {"type": "string"}},
      "created_at": {"type": "string"}
    },
    "required": ["input", "expected_output"],
    "additionalProperties": false
  }
}`

var compiledSuiteSchema = jsonschema.MustCompileString("test_cases.schema.json", suiteSchema)

// caseSpec mirrors one entry of the external test-case document.
type caseSpec struct {
	ID             string     `json:"id"`
	Input          string     `json:"input"`
	ExpectedOutput string     `json:"expected_output"`
	ScoringMethod  string     `json:"scoring_method"`
	Tags           []string   `json:"tags"`
	CreatedAt      *time.Time `json:"created_at"`
}

// ParseSuite validates the JSON document against the suite schema and
// materialises test cases scoped to the grouping project id. Entries may
// pin their own id and created_at; everything else is generated.
func ParseSuite(doc []byte, projectID string) ([]models.TestCase, error) {
	var generic interface{}
	if err := json.Unmarshal(doc, &generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuite, err)
	}

	if err := compiledSuiteSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuite, err)
	}

	var specs []caseSpec
	if err := json.Unmarshal(doc, &specs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuite, err)
	}

	now := time.Now().UTC()
	cases := make([]models.TestCase, 0, len(specs))
	for i, spec := range specs {
		id := spec.ID
		if id == "" {
			id = uuid.NewString()
		} else if _, err := uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("%w: entry %d: invalid id %q", ErrInvalidSuite, i, spec.ID)
		}

		method := models.ScoringMethod(spec.ScoringMethod)
		if spec.ScoringMethod == "" {
			method = models.DefaultScoringMethod
		}

		createdAt := now
		if spec.CreatedAt != nil {
			createdAt = *spec.CreatedAt
		}

		cases = append(cases, models.TestCase{
			ID:             id,
			ProjectID:      projectID,
			Input:          spec.Input,
			ExpectedOutput: spec.ExpectedOutput,
			ScoringMethod:  method,
			Tags:           spec.Tags,
			CreatedAt:      createdAt,
		})
	}

	return cases, nil
}

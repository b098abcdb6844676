package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// shapeSchemaJSON describes the expected shape of a structured engine payload.
// Validation here is advisory only: violations become warnings on the
// snapshot, they never fail the parse.
const shapeSchemaJSON = `{
  "type": "object",
  "properties": {
    "reasoning": {"type": "string"},
    "decisions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "symbol": {"type": "string"},
          "action": {"type": "string"},
          "confidence": {"type": ["string", "number"]},
          "quantity": {"type": ["string", "number"]}
        }
      }
    },
    "portfolio_summary": {"type": "object"},
    "portfolio_positions": {"type": "array"},
    "history": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "timestamp": {"type": "string"},
          "value": {"type": ["string", "number"]}
        }
      }
    },
    "trade_history": {"type": "array"}
  }
}`

var (
	shapeSchemaOnce sync.Once
	shapeSchema     *jsonschema.Schema
)

func compiledShapeSchema() *jsonschema.Schema {
	shapeSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("snapshot.json", strings.NewReader(shapeSchemaJSON)); err != nil {
			return
		}
		shapeSchema, _ = compiler.Compile("snapshot.json")
	})
	return shapeSchema
}

const maxShapeWarnings = 5

// shapeWarnings validates payload against the snapshot schema and returns the
// leaf violations as short strings, capped at maxShapeWarnings.
func shapeWarnings(payload string) []string {
	schema := compiledShapeSchema()
	if schema == nil {
		return nil
	}
	var doc any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil
	}
	err := schema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var out []string
	collectLeafCauses(ve, &out)
	if len(out) > maxShapeWarnings {
		out = out[:maxShapeWarnings]
	}
	return out
}

func collectLeafCauses(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, fmt.Sprintf("%s: %s", loc, ve.Message))
		return
	}
	for _, cause := range ve.Causes {
		collectLeafCauses(cause, out)
	}
}

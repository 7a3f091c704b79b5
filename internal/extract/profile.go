package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/docuplane/docintel/internal/common"
	"github.com/docuplane/docintel/internal/entity"
)

// itemTypesSchema constrains the profile-declared detection config. The
// profile is external data, so it gets the same treatment as any other
// untrusted input.
const itemTypesSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["name", "patterns"],
    "properties": {
      "name": {"type": "string", "minLength": 1},
      "patterns": {
        "type": "array",
        "minItems": 1,
        "items": {
          "type": "object",
          "required": ["kind", "value"],
          "properties": {
            "kind": {"type": "string", "enum": ["keyword", "regex"]},
            "value": {"type": "string", "minLength": 1},
            "weight": {"type": "number", "minimum": 0, "maximum": 1}
          }
        }
      }
    }
  }
}`

var compiledItemTypesSchema = func() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("item_types.json", strings.NewReader(itemTypesSchema)); err != nil {
		panic(err)
	}
	return c.MustCompile("item_types.json")
}()

// compiledPattern pairs a declared pattern with its ready-to-run matcher.
type compiledPattern struct {
	spec entity.DetectionPattern
	re   *regexp.Regexp // nil for keyword patterns
}

type compiledItemType struct {
	name     string
	patterns []compiledPattern
}

// compileProfile validates the profile and compiles its detection patterns.
// Any defect is a ValidationError raised before OCR output is touched.
func compileProfile(profile *entity.DocumentProfile) ([]compiledItemType, error) {
	if profile == nil {
		return nil, common.NewValidationError("document_profile", "profile is missing")
	}
	if !profile.Active {
		return nil, common.NewValidationError("document_profile", "profile %s is inactive", profile.ID)
	}

	raw, err := json.Marshal(profile.ItemTypes)
	if err != nil {
		return nil, common.NewValidationError("item_types", "not serializable: %v", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, common.NewValidationError("item_types", "not valid JSON: %v", err)
	}
	if err := compiledItemTypesSchema.Validate(decoded); err != nil {
		return nil, common.NewValidationError("item_types", "malformed detection config: %v", err)
	}

	types := make([]compiledItemType, 0, len(profile.ItemTypes))
	for _, it := range profile.ItemTypes {
		ct := compiledItemType{name: it.Name}
		for _, pat := range it.Patterns {
			cp := compiledPattern{spec: pat}
			if pat.Kind == entity.PatternRegex {
				re, err := regexp.Compile("(?i)" + pat.Value)
				if err != nil {
					return nil, common.NewValidationError("item_types",
						"item type %q: bad regex %q: %v", it.Name, pat.Value, err)
				}
				cp.re = re
			}
			ct.patterns = append(ct.patterns, cp)
		}
		types = append(types, ct)
	}
	return types, nil
}

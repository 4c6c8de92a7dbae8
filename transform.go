package aigateway

import "encoding/json"

// transform.go implements the gateway pipeline's "transform" stage: the two
// built-in request/response standardizers that translate the legacy wire
// keys a handful of older clients still send into the shapes this gateway's
// handlers decode, so those clients don't have to be migrated in lockstep
// with the gateway itself.

// legacyRequestAliases maps a legacy top-level request field to the field
// name the current handlers read from the decoded JSON object.
var legacyRequestAliases = map[string]string{
	"input":      "prompt",
	"max_tokens": "maxTokens",
	"top_p":      "topP",
}

// standardizeInferenceRequest rewrites legacy top-level keys in a raw
// request body to their current names, leaving any key already using the
// current name untouched (a client mixing old and new names never has a
// current value clobbered by a legacy one).
func standardizeInferenceRequest(raw []byte) ([]byte, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}

	for legacy, current := range legacyRequestAliases {
		val, present := obj[legacy]
		if !present {
			continue
		}
		if _, alreadyCurrent := obj[current]; !alreadyCurrent {
			obj[current] = val
		}
		delete(obj, legacy)
	}

	return json.Marshal(obj)
}

// legacyResponseAliases maps a current top-level response field to the
// legacy name some older clients still expect to find it under.
var legacyResponseAliases = map[string]string{
	"model":   "modelName",
	"choices": "completions",
}

// standardizeInferenceResponse adds the legacy aliases of
// legacyResponseAliases alongside the current fields, without removing the
// current fields, so both old and new clients can parse the same payload.
func standardizeInferenceResponse(raw []byte) ([]byte, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}

	for current, legacy := range legacyResponseAliases {
		if val, present := obj[current]; present {
			obj[legacy] = val
		}
	}

	return json.Marshal(obj)
}

package audit

import (
	"encoding/json"
	"strings"
)

// RedactedValue replaces sensitive field values in captured payloads.
const RedactedValue = "***FILTERED***"

var sensitiveFields = map[string]struct{}{
	"password":         {},
	"token":            {},
	"secret":           {},
	"api_key":          {},
	"access_token":     {},
	"refresh_token":    {},
	"current_password": {},
	"new_password":     {},
	"confirm_password": {},
}

// RedactPayload parses a JSON request body and replaces values of sensitive
// top-level fields with RedactedValue. Non-object JSON passes through as-is;
// unparseable bodies yield nil — the audit entry simply omits the payload.
func RedactPayload(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return parsed
	}
	for k := range obj {
		if _, sensitive := sensitiveFields[strings.ToLower(k)]; sensitive {
			obj[k] = RedactedValue
		}
	}
	return obj
}

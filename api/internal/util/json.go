package util

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FixJSONSchemaStrict brings a schema to the form OpenAI strict mode accepts:
// objects get type=object, additionalProperties=false and every property
// listed in required. Optional fields must be expressed as nullable types.
func FixJSONSchemaStrict(node any) {
	switch n := node.(type) {
	case map[string]any:
		if props, ok := n["properties"].(map[string]any); ok {
			if _, hasType := n["type"]; !hasType {
				n["type"] = "object"
			}
			keys := make([]string, 0, len(props))
			for k := range props {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			req := make([]any, 0, len(keys))
			for _, k := range keys {
				req = append(req, k)
			}
			n["required"] = req
			n["additionalProperties"] = false
			for _, v := range props {
				FixJSONSchemaStrict(v)
			}
		}
		if items, ok := n["items"]; ok {
			switch it := items.(type) {
			case map[string]any:
				FixJSONSchemaStrict(it)
			case []any:
				for _, el := range it {
					FixJSONSchemaStrict(el)
				}
			}
		}
		for _, k := range []string{"oneOf", "anyOf", "allOf"} {
			if v, ok := n[k]; ok {
				if arr, ok := v.([]any); ok {
					for _, el := range arr {
						FixJSONSchemaStrict(el)
					}
				}
			}
		}
	case []any:
		for _, v := range n {
			FixJSONSchemaStrict(v)
		}
	}
}

// EnsureSchemaMeta adds $schema; some clients expect it.
func EnsureSchemaMeta(m map[string]any) {
	if _, ok := m["$schema"]; !ok {
		m["$schema"] = "http://json-schema.org/draft-07/schema#"
	}
}

// ExtractResponsesText pulls model text out of an OpenAI Responses API
// envelope. It prefers output_text and otherwise joins the text segments of
// output[i].content[j] whose type is output_text or text.
func ExtractResponsesText(raw []byte) (string, error) {
	type content struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	type output struct {
		Type    string    `json:"type"`
		Content []content `json:"content"`
	}
	var env struct {
		Status     string   `json:"status"`
		Output     []output `json:"output"`
		OutputText string   `json:"output_text"`
		Error      *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("responses: bad envelope: %w", err)
	}
	if env.Error != nil && env.Error.Message != "" {
		return "", fmt.Errorf("responses: %s", env.Error.Message)
	}
	if s := strings.TrimSpace(env.OutputText); s != "" {
		return s, nil
	}

	var b strings.Builder
	for _, o := range env.Output {
		for _, c := range o.Content {
			if strings.TrimSpace(c.Text) == "" {
				continue
			}
			if c.Type == "output_text" || c.Type == "text" || c.Type == "" {
				if b.Len() > 0 {
					b.WriteByte('\n')
				}
				b.WriteString(c.Text)
			}
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("responses: empty output (status=%q)", env.Status)
	}
	return b.String(), nil
}

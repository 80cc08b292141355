// Package normalize turns untrusted model output into canonical protocol
// documents. Registration responses may arrive in one of three shapes;
// comparison responses must arrive as a single object.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"prereg/pkg/domain"
)

// Advisory is a non-fatal observation about model output. The value it refers
// to was kept literally, dropped, or was missing, as the message says.
type Advisory struct {
	QuestionID string
	Message    string
}

func (a Advisory) String() string {
	if a.QuestionID == "" {
		return a.Message
	}
	return a.QuestionID + ": " + a.Message
}

// predictionShape is the closed set of tolerated registration response shapes.
type predictionShape interface{ shapeName() string }

// bareList is a top-level array of prediction objects.
type bareList struct{ items []json.RawMessage }

// wrappedList is an object whose "predictions" key holds the array.
type wrappedList struct{ items []json.RawMessage }

// keyedObject maps question ids to prediction objects, in encounter order.
type keyedObject struct{ members []member }

func (bareList) shapeName() string    { return "bare list" }
func (wrappedList) shapeName() string { return "wrapped list" }
func (keyedObject) shapeName() string { return "keyed object" }

type member struct {
	key   string
	value json.RawMessage
}

func malformed(raw, reason string, err error) error {
	return &domain.MalformedResponseError{Reason: reason, Raw: raw, Err: err}
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// classifyPredictions decodes raw into one of the tolerated shapes.
func classifyPredictions(raw string) (predictionShape, error) {
	body := []byte(stripFences(raw))
	if !json.Valid(body) {
		return nil, malformed(raw, "response is not valid JSON", nil)
	}
	switch firstByte(body) {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, malformed(raw, "decode prediction list", err)
		}
		return bareList{items: items}, nil
	case '{':
		members, err := orderedMembers(body)
		if err != nil {
			return nil, malformed(raw, "decode response object", err)
		}
		for _, m := range members {
			if m.key != "predictions" {
				continue
			}
			var items []json.RawMessage
			if firstByte(m.value) != '[' {
				return nil, malformed(raw, `"predictions" does not hold a list`, nil)
			}
			if err := json.Unmarshal(m.value, &items); err != nil {
				return nil, malformed(raw, `decode "predictions" list`, err)
			}
			return wrappedList{items: items}, nil
		}
		for _, m := range members {
			if firstByte(m.value) != '{' {
				return nil, malformed(raw, fmt.Sprintf("keyed object value %q is not a prediction object", m.key), nil)
			}
		}
		return keyedObject{members: members}, nil
	default:
		return nil, malformed(raw, "response is neither a prediction list nor an object", nil)
	}
}

// orderedMembers walks a JSON object keeping member order.
func orderedMembers(body []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var out []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		out = append(out, member{key: key, value: value})
	}
	return out, nil
}

func firstByte(b []byte) byte {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

// text renders a loosely typed field: strings verbatim, null or missing as
// empty, anything else as its JSON text.
func text(raw json.RawMessage) string {
	return domain.Literal(raw).String()
}

// textList accepts an array of loosely typed values or a single string. The
// result is never nil so that it encodes as a JSON list.
func textList(raw json.RawMessage) ([]string, bool) {
	switch firstByte(raw) {
	case 0, 'n':
		return []string{}, true
	case '"':
		return []string{text(raw)}, true
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return []string{}, false
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, text(it))
		}
		return out, true
	default:
		return []string{}, false
	}
}

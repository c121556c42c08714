package formsg

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Pair is one form answer, flattened.
type Pair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Source names the payload shape a ParseAttempt recognised.
type Source string

const (
	SourceResponses  Source = "responses"
	SourceNestedData Source = "nested_data"
	SourceFieldMap   Source = "field_map"
	SourceTopLevel   Source = "top_level"
	SourceNone       Source = "none"
)

// ParseAttempt is the result of one parser: either Matched with the pairs it
// found, or not matched.
type ParseAttempt struct {
	Source  Source
	Pairs   []Pair
	Matched bool
}

func noMatch(src Source) ParseAttempt {
	return ParseAttempt{Source: src}
}

func matched(src Source, pairs []Pair) ParseAttempt {
	if len(pairs) == 0 {
		return noMatch(src)
	}
	return ParseAttempt{Source: src, Pairs: pairs, Matched: true}
}

// Parser inspects a decoded payload without side effects.
type Parser func(payload map[string]any) ParseAttempt

// DefaultChain is tried in order; the first match wins.
var DefaultChain = []Parser{
	ParseResponses,
	ParseFieldMap,
	ParseNestedData,
	ParseTopLevel,
}

// Normalize runs chain over payload and returns the first matching attempt,
// or an unmatched attempt with SourceNone.
func Normalize(payload map[string]any, chain []Parser) ParseAttempt {
	for _, parse := range chain {
		if attempt := parse(payload); attempt.Matched {
			return attempt
		}
	}
	return noMatch(SourceNone)
}

// ParseResponses reads {responses: [{question, answer}, ...]}. A top-level
// "data" that is itself an array of responses is accepted too.
func ParseResponses(payload map[string]any) ParseAttempt {
	if list, ok := payload["responses"].([]any); ok {
		return matched(SourceResponses, pairsFromList(list))
	}
	if list, ok := payload["data"].([]any); ok {
		return matched(SourceResponses, pairsFromList(list))
	}
	return noMatch(SourceResponses)
}

// ParseNestedData reads {data: {...}}: either a responses array inside data,
// or data's own scalar fields treated as question/answer.
func ParseNestedData(payload map[string]any) ParseAttempt {
	data, ok := payload["data"].(map[string]any)
	if !ok {
		return noMatch(SourceNestedData)
	}
	if list, ok := data["responses"].([]any); ok {
		if pairs := pairsFromList(list); len(pairs) > 0 {
			return matched(SourceNestedData, pairs)
		}
	}
	return matched(SourceNestedData, pairsFromFields(data))
}

// ParseFieldMap reads version 3 content: an object keyed by field id whose
// values are {fieldType, question?, answer | answerArray} records. It looks
// in data first, then at the top level. A record without question text is
// asked under its fieldType, so an "email" field still reads as an email.
func ParseFieldMap(payload map[string]any) ParseAttempt {
	if data, ok := payload["data"].(map[string]any); ok {
		if pairs := pairsFromRecords(data); len(pairs) > 0 {
			return matched(SourceFieldMap, pairs)
		}
	}
	return matched(SourceFieldMap, pairsFromRecords(payload))
}

// ParseTopLevel treats the payload's own scalar fields as question/answer.
func ParseTopLevel(payload map[string]any) ParseAttempt {
	return matched(SourceTopLevel, pairsFromFields(payload))
}

// envelopeKeys are FormSG transport fields, never form answers.
var envelopeKeys = map[string]bool{
	"formId":                       true,
	"submissionId":                 true,
	"encryptedContent":             true,
	"encryptedSubmissionSecretKey": true,
	"verifiedContent":              true,
	"version":                      true,
	"created":                      true,
	"attachmentDownloadUrls":       true,
	"paymentContent":               true,
	"responses":                    true,
	"data":                         true,
}

func pairsFromList(list []any) []Pair {
	pairs := make([]Pair, 0, len(list))
	for _, item := range list {
		field, ok := item.(map[string]any)
		if !ok {
			continue
		}
		question, _ := field["question"].(string)
		question = strings.TrimSpace(question)
		if question == "" {
			continue
		}
		answer, ok := field["answer"]
		if !ok || answer == nil {
			answer = field["answerArray"]
		}
		pairs = append(pairs, Pair{Question: question, Answer: stringify(answer)})
	}
	return pairs
}

func pairsFromRecords(fields map[string]any) []Pair {
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if envelopeKeys[k] {
			continue
		}
		if _, ok := asRecord(v); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]Pair, 0, len(keys))
	for _, k := range keys {
		record, _ := asRecord(fields[k])
		question, _ := record["question"].(string)
		question = strings.TrimSpace(question)
		if question == "" {
			question, _ = record["fieldType"].(string)
			question = strings.TrimSpace(question)
		}
		if question == "" {
			question = k
		}
		answer, ok := record["answer"]
		if !ok || answer == nil {
			answer = record["answerArray"]
		}
		pairs = append(pairs, Pair{Question: question, Answer: stringify(answer)})
	}
	return pairs
}

// asRecord accepts an object carrying a fieldType or an answer.
func asRecord(v any) (map[string]any, bool) {
	record, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	_, hasType := record["fieldType"]
	_, hasAnswer := record["answer"]
	_, hasArray := record["answerArray"]
	return record, hasType || hasAnswer || hasArray
}

// pairsFromFields walks keys in sorted order so results are deterministic.
func pairsFromFields(fields map[string]any) []Pair {
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if envelopeKeys[k] || !isScalar(v) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]Pair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, Pair{Question: k, Answer: stringify(fields[k])})
	}
	return pairs
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, float64, bool, json.Number:
		return true
	}
	return false
}

// stringify renders a decoded JSON answer. Checkbox and table answers arrive
// as (nested) arrays and are joined with ", ".
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if s := stringify(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

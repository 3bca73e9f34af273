package search

import "strings"

// Shape tags the layout of a decoded webhook payload.
type Shape int

const (
	// ShapeSingleItem is any payload not matched by another shape; it is wrapped in a one-element list.
	ShapeSingleItem Shape = iota
	// ShapeGrouped bundles per-platform arrays under linkedin, facebook and twitter keys,
	// either at the top level or in the first element of an array.
	ShapeGrouped
	// ShapeResultsWrapper carries records under a "results" array.
	ShapeResultsWrapper
	// ShapePlainArray is a bare array of records.
	ShapePlainArray
	// ShapeDataWrapper carries records under a "data" array.
	ShapeDataWrapper
)

func (s Shape) String() string {
	switch s {
	case ShapeGrouped:
		return "grouped"
	case ShapeResultsWrapper:
		return "results_wrapper"
	case ShapePlainArray:
		return "plain_array"
	case ShapeDataWrapper:
		return "data_wrapper"
	default:
		return "single_item"
	}
}

var groupKeys = []string{"linkedin", "facebook", "twitter"}

// DetectShape inspects a payload decoded with encoding/json into any.
// Precedence: grouped, results wrapper, plain array, data wrapper, single item.
func DetectShape(payload any) Shape {
	if groupedObject(payload) != nil {
		return ShapeGrouped
	}
	if object, ok := payload.(map[string]any); ok {
		if _, ok := object["results"].([]any); ok {
			return ShapeResultsWrapper
		}
	}
	if _, ok := payload.([]any); ok {
		return ShapePlainArray
	}
	if object, ok := payload.(map[string]any); ok {
		if _, ok := object["data"].([]any); ok {
			return ShapeDataWrapper
		}
	}
	return ShapeSingleItem
}

// Normalize flattens a decoded payload into person records.
func Normalize(payload any) []PersonRecord {
	switch DetectShape(payload) {
	case ShapeGrouped:
		return flattenGroups(groupedObject(payload))
	case ShapeResultsWrapper:
		return decodeRecords(payload.(map[string]any)["results"].([]any))
	case ShapePlainArray:
		return decodeRecords(payload.([]any))
	case ShapeDataWrapper:
		return decodeRecords(payload.(map[string]any)["data"].([]any))
	default:
		return []PersonRecord{decodeRecord(payload)}
	}
}

// groupedObject returns the object holding per-platform buckets, or nil.
func groupedObject(payload any) map[string]any {
	switch value := payload.(type) {
	case []any:
		if len(value) == 0 {
			return nil
		}
		first, ok := value[0].(map[string]any)
		if ok && hasGroupKey(first) {
			return first
		}
	case map[string]any:
		if hasGroupKey(value) {
			return value
		}
	}
	return nil
}

func hasGroupKey(object map[string]any) bool {
	for _, key := range groupKeys {
		if truthy(object[key]) {
			return true
		}
	}
	return false
}

// flattenGroups concatenates linkedin, facebook and twitter buckets in that order.
// Keys whose value is not an array contribute nothing.
func flattenGroups(group map[string]any) []PersonRecord {
	records := make([]PersonRecord, 0)
	for _, key := range groupKeys {
		items, ok := group[key].([]any)
		if !ok {
			continue
		}
		for _, item := range items {
			records = append(records, transformGroupedItem(item))
		}
	}
	return records
}

func decodeRecords(items []any) []PersonRecord {
	records := make([]PersonRecord, 0, len(items))
	for _, item := range items {
		records = append(records, decodeRecord(item))
	}
	return records
}

// rateLimitMessage reports whether an object payload carries a message mentioning "limit".
func rateLimitMessage(payload any) (string, bool) {
	object, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	message, ok := object["message"].(string)
	if !ok || !strings.Contains(message, "limit") {
		return "", false
	}
	return message, true
}

// truthy follows JSON value truthiness: null, false, 0 and "" are falsy; arrays and objects,
// even empty, are truthy.
func truthy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case bool:
		return typed
	case float64:
		return typed != 0
	case string:
		return typed != ""
	default:
		return true
	}
}

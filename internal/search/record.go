package search

import "strings"

// Recognized source network tags. Matching is exact and case-sensitive.
const (
	SourceLinkedIn = "LinkedIn"
	SourceFacebook = "Facebook"
	SourceTwitter  = "Twitter"
	SourceUnknown  = "Unknown"
)

const (
	unknownName        = "Unknown"
	defaultDescription = "No description available."
	titleDelimiter     = " - "
)

// PersonRecord is a single normalized search hit.
type PersonRecord struct {
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Link        string  `json:"link"`
	Source      string  `json:"source"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	Confidence  float64 `json:"confidence"`
}

// DeriveName returns the part of title before the first " - ", falling back to
// the whole title and then to "Unknown". The result is never empty.
func DeriveName(title string) string {
	head, _, _ := strings.Cut(title, titleDelimiter)
	if name := strings.TrimSpace(head); name != "" {
		return name
	}
	if name := strings.TrimSpace(title); name != "" {
		return name
	}
	return unknownName
}

// transformGroupedItem maps one element of a per-platform bucket into a record.
func transformGroupedItem(raw any) PersonRecord {
	item, _ := raw.(map[string]any)
	title := stringField(item, "title")
	return PersonRecord{
		Name:        DeriveName(title),
		Title:       title,
		Link:        stringField(item, "link"),
		Source:      orDefault(stringField(item, "platform"), SourceUnknown),
		Description: orDefault(stringField(item, "description"), defaultDescription),
		Location:    stringField(item, "location"),
		Confidence:  numberField(item, "confidence"),
	}
}

// decodeRecord reads an element already assumed to be in record shape.
// Missing or mistyped fields stay zero-valued.
func decodeRecord(raw any) PersonRecord {
	item, _ := raw.(map[string]any)
	return PersonRecord{
		Name:        stringField(item, "name"),
		Title:       stringField(item, "title"),
		Link:        stringField(item, "link"),
		Source:      stringField(item, "source"),
		Description: stringField(item, "description"),
		Location:    stringField(item, "location"),
		Confidence:  numberField(item, "confidence"),
	}
}

func stringField(item map[string]any, key string) string {
	value, _ := item[key].(string)
	return value
}

func numberField(item map[string]any, key string) float64 {
	value, _ := item[key].(float64)
	return value
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

package search

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func decodePayload(t *testing.T, body string) any {
	t.Helper()
	var payload any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("invalid fixture %s: %v", body, err)
	}
	return payload
}

func TestDetectShape(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Shape
	}{
		{name: "grouped object", body: `{"linkedin":[]}`, want: ShapeGrouped},
		{name: "grouped first element", body: `[{"twitter":[{"title":"A"}]},{"other":1}]`, want: ShapeGrouped},
		{name: "grouped key with object value", body: `{"facebook":{"title":"A"}}`, want: ShapeGrouped},
		{name: "falsy group keys ignored", body: `{"linkedin":null,"facebook":false,"twitter":"","results":[]}`, want: ShapeResultsWrapper},
		{name: "results wrapper", body: `{"results":[{"name":"A"}]}`, want: ShapeResultsWrapper},
		{name: "results wins over data", body: `{"results":[],"data":[]}`, want: ShapeResultsWrapper},
		{name: "plain array", body: `[{"name":"A"}]`, want: ShapePlainArray},
		{name: "empty array", body: `[]`, want: ShapePlainArray},
		{name: "array with non-object head", body: `["x",{"linkedin":[]}]`, want: ShapePlainArray},
		{name: "data wrapper", body: `{"data":[{"name":"A"}]}`, want: ShapeDataWrapper},
		{name: "results not an array", body: `{"results":{"name":"A"}}`, want: ShapeSingleItem},
		{name: "single object", body: `{"name":"A"}`, want: ShapeSingleItem},
		{name: "scalar", body: `"hello"`, want: ShapeSingleItem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectShape(decodePayload(t, tt.body)); got != tt.want {
				t.Fatalf("DetectShape(%s) = %s, want %s", tt.body, got, tt.want)
			}
		})
	}
}

func TestNormalizeGroupedOrdersPlatforms(t *testing.T) {
	payload := decodePayload(t, `{
		"twitter": [{"title": "Tess - @tess", "platform": "Twitter", "link": "https://x.com/tess"}],
		"facebook": [
			{"title": "Finn", "platform": "Facebook"},
			{"title": "Fay - Baker", "platform": "Facebook", "location": "Lyon"}
		],
		"linkedin": [{"title": "Jane Doe - Software Engineer", "platform": "LinkedIn", "confidence": 0.9, "description": "Builds things"}]
	}`)

	got := Normalize(payload)
	want := []PersonRecord{
		{Name: "Jane Doe", Title: "Jane Doe - Software Engineer", Source: SourceLinkedIn, Description: "Builds things", Confidence: 0.9},
		{Name: "Finn", Title: "Finn", Source: SourceFacebook, Description: defaultDescription},
		{Name: "Fay", Title: "Fay - Baker", Source: SourceFacebook, Description: defaultDescription, Location: "Lyon"},
		{Name: "Tess", Title: "Tess - @tess", Link: "https://x.com/tess", Source: SourceTwitter, Description: defaultDescription},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected records (-want +got):\n%s", diff)
	}
}

func TestNormalizeGroupedLengthIsSumOfBuckets(t *testing.T) {
	subsets := []string{
		`{"linkedin":[{},{}]}`,
		`{"facebook":[{}],"twitter":[{},{},{}]}`,
		`[{"linkedin":[{}],"facebook":[{}],"twitter":[{}]}]`,
		`{"linkedin":[],"facebook":"not-a-list","twitter":[{}]}`,
	}
	expected := []int{2, 4, 3, 1}
	for index, body := range subsets {
		if got := len(Normalize(decodePayload(t, body))); got != expected[index] {
			t.Fatalf("Normalize(%s) returned %d records, want %d", body, got, expected[index])
		}
	}
}

func TestNormalizeGroupedDefaults(t *testing.T) {
	got := Normalize(decodePayload(t, `{"linkedin":[{}, "garbage", {"title": 12, "confidence": "high"}]}`))
	want := PersonRecord{Name: unknownName, Source: SourceUnknown, Description: defaultDescription}
	for index, record := range got {
		if diff := cmp.Diff(want, record); diff != "" {
			t.Fatalf("record %d mismatch (-want +got):\n%s", index, diff)
		}
	}
}

func TestNormalizePassesThroughRecordShapes(t *testing.T) {
	record := `{"name":"Ada","title":"Engineer","source":"Reddit","confidence":0.5}`
	want := []PersonRecord{{Name: "Ada", Title: "Engineer", Source: "Reddit", Confidence: 0.5}}
	for _, body := range []string{
		`{"results":[` + record + `]}`,
		`[` + record + `]`,
		`{"data":[` + record + `]}`,
		record,
	} {
		if diff := cmp.Diff(want, Normalize(decodePayload(t, body))); diff != "" {
			t.Fatalf("Normalize(%s) mismatch (-want +got):\n%s", body, diff)
		}
	}
}

func TestDeriveName(t *testing.T) {
	cases := map[string]string{
		"Jane Doe - Software Engineer":   "Jane Doe",
		"Solo Title":                     "Solo Title",
		"":                               "Unknown",
		"A - B - C":                      "A",
		"  Padded Name  - Role":          "Padded Name",
		" - Headline Only":               "- Headline Only",
		"   ":                            "Unknown",
		"Hyphenated-Name - Product Lead": "Hyphenated-Name",
	}
	for title, expected := range cases {
		if got := DeriveName(title); got != expected {
			t.Fatalf("DeriveName(%q) = %q, want %q", title, got, expected)
		}
	}
}

func TestRateLimitMessage(t *testing.T) {
	if _, limited := rateLimitMessage(decodePayload(t, `{"message":"rate limit exceeded"}`)); !limited {
		t.Fatalf("expected limit message to be detected")
	}
	if _, limited := rateLimitMessage(decodePayload(t, `{"message":"Rate LIMIT"}`)); limited {
		t.Fatalf("expected case-sensitive match")
	}
	if _, limited := rateLimitMessage(decodePayload(t, `[{"message":"limit"}]`)); limited {
		t.Fatalf("expected arrays to be ignored")
	}
}

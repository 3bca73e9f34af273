package search

// ResultSet partitions records by source network.
type ResultSet struct {
	LinkedIn []PersonRecord `json:"linkedin"`
	Facebook []PersonRecord `json:"facebook"`
	Twitter  []PersonRecord `json:"twitter"`
}

// Bucket partitions records by exact source match. Records from any other
// source, including "Unknown", appear in no bucket.
func Bucket(records []PersonRecord) ResultSet {
	set := ResultSet{
		LinkedIn: []PersonRecord{},
		Facebook: []PersonRecord{},
		Twitter:  []PersonRecord{},
	}
	for _, record := range records {
		switch record.Source {
		case SourceLinkedIn:
			set.LinkedIn = append(set.LinkedIn, record)
		case SourceFacebook:
			set.Facebook = append(set.Facebook, record)
		case SourceTwitter:
			set.Twitter = append(set.Twitter, record)
		}
	}
	return set
}

// Total counts the bucketed records.
func (s ResultSet) Total() int {
	return len(s.LinkedIn) + len(s.Facebook) + len(s.Twitter)
}

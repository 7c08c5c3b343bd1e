package domain

// Query is one actionable sighting kept in a domain's history.
type Query struct {
	IP   string    `json:"IP"`
	Time Timestamp `json:"time"`
}

// DomainRecord is the persisted, append-only history of one domain.
type DomainRecord struct {
	Domain  string  `json:"domain" validate:"required"`
	Count   int     `json:"count" validate:"min=1"`
	Queries []Query `json:"queries" validate:"min=1"`
}

func NewDomainRecord(name string, first Query) DomainRecord {
	return DomainRecord{Domain: name, Count: 1, Queries: []Query{first}}
}

// Consistent reports whether Count matches the number of stored queries.
func (r DomainRecord) Consistent() bool {
	return r.Count == len(r.Queries)
}

// Last returns the most recently appended query, which is not necessarily the
// latest one by time.
func (r DomainRecord) Last() (Query, bool) {
	if len(r.Queries) == 0 {
		return Query{}, false
	}
	return r.Queries[len(r.Queries)-1], true
}

// Clone returns a copy that shares no memory with r.
func (r DomainRecord) Clone() DomainRecord {
	out := r
	if r.Queries != nil {
		out.Queries = make([]Query, len(r.Queries))
		copy(out.Queries, r.Queries)
	}
	return out
}

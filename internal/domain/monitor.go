package domain

// Monitor (Cyber Vision) API resources, limited to the fields this module reads.

const (
	TagDNSServer = "DNS_SERVER"
	TagDNS       = "DNS"
)

type Tag struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

type Property struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type GroupRef struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

type Component struct {
	ID                   string     `json:"id" validate:"required"`
	Label                string     `json:"label,omitempty"`
	Tags                 []Tag      `json:"tags"`
	Group                *GroupRef  `json:"group"`
	NormalizedProperties []Property `json:"normalizedProperties"`
}

// HasPrimaryTag reports whether the component's first tag is id.
func (c Component) HasPrimaryTag(id string) bool {
	return len(c.Tags) > 0 && c.Tags[0].ID == id
}

type Flow struct {
	ID   string `json:"id" validate:"required"`
	Tags []Tag  `json:"tags"`
}

func (f Flow) HasPrimaryTag(id string) bool {
	return len(f.Tags) > 0 && f.Tags[0].ID == id
}

type Endpoint struct {
	IP    string `json:"ip"`
	Label string `json:"label,omitempty"`
}

// FlowDetail is the single-flow resource. Left or Right is nil when the
// monitor omitted that side.
type FlowDetail struct {
	ID            string     `json:"id" validate:"required"`
	Properties    []Property `json:"properties"`
	Left          *Endpoint  `json:"left"`
	Right         *Endpoint  `json:"right"`
	FirstActivity int64      `json:"firstActivity" validate:"gt=0"`
}

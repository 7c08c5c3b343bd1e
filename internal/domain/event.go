package domain

const (
	EventTask = "Malicious DNS Query"
	EventType = "extension_alert"
)

// EventPayload is the body posted to the monitor's extension report endpoint.
type EventPayload struct {
	Task  string `json:"task"`
	Alert Alert  `json:"alert"`
}

type Alert struct {
	EventType string `json:"event-type"`
	Message   string `json:"message"`
}

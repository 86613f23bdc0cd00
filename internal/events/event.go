package events

import "time"

// Subject ids for the network-backed cards. Requests and responses carry one
// of these so that several cards can share a queue.
const (
	SubjectWeather      = "weather"
	SubjectClock        = "clock"
	SubjectNowPlaying   = "nowplaying"
	SubjectYearProgress = "yearprogress"
)

// Event is the envelope that flows through the queue.
// It is copied by value into the mailbox and into every callback, so nothing
// downstream can observe a mutation made by the producer after Publish.
type Event struct {
	Kind      Kind
	SubjectID string
	Payload   string
	Title     string // card_title_updated only
	Success   bool

	// Parsed is an optional shared handle to a decoded payload. Holders must
	// treat it as read-only.
	Parsed any

	Timestamp time.Time
}

type Kind string

const (
	// Insight data
	KindInsightDataReceived Kind = "insight_data_received"
	KindInsightForceRefresh Kind = "insight_force_refresh"
	// Connectivity
	KindWiFiCredentialsFound Kind = "wifi_credentials_found"
	KindNeedWiFiCredentials  Kind = "need_wifi_credentials"
	KindWiFiConnecting       Kind = "wifi_connecting"
	KindWiFiConnected        Kind = "wifi_connected"
	KindWiFiConnectionFailed Kind = "wifi_connection_failed"
	KindWiFiAPStarted        Kind = "wifi_ap_started"
	// Firmware update
	KindOTAProcessStart Kind = "ota_process_start"
	KindOTAProcessEnd   Kind = "ota_process_end"
	// Card stack
	KindCardConfigChanged Kind = "card_config_changed"
	KindCardTitleUpdated  Kind = "card_title_updated"
	// Card request/response pairs
	KindTimeSyncRequest        Kind = "time_sync_request"
	KindTimeSyncComplete       Kind = "time_sync_complete"
	KindWeatherRequest         Kind = "weather_request"
	KindWeatherDataReceived    Kind = "weather_data_received"
	KindNowPlayingRequest      Kind = "now_playing_request"
	KindNowPlayingDataReceived Kind = "now_playing_data_received"
)

var allKinds = map[Kind]bool{
	KindInsightDataReceived:    true,
	KindInsightForceRefresh:    true,
	KindWiFiCredentialsFound:   true,
	KindNeedWiFiCredentials:    true,
	KindWiFiConnecting:         true,
	KindWiFiConnected:          true,
	KindWiFiConnectionFailed:   true,
	KindWiFiAPStarted:          true,
	KindOTAProcessStart:        true,
	KindOTAProcessEnd:          true,
	KindCardConfigChanged:      true,
	KindCardTitleUpdated:       true,
	KindTimeSyncRequest:        true,
	KindTimeSyncComplete:       true,
	KindWeatherRequest:         true,
	KindWeatherDataReceived:    true,
	KindNowPlayingRequest:      true,
	KindNowPlayingDataReceived: true,
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool { return allKinds[k] }

// IsRequest reports whether k asks the IO side to do something.
func (k Kind) IsRequest() bool {
	switch k {
	case KindTimeSyncRequest, KindWeatherRequest, KindNowPlayingRequest:
		return true
	}
	return false
}

// IsResponse reports whether k carries an outcome (Success is meaningful).
func (k Kind) IsResponse() bool {
	switch k {
	case KindTimeSyncComplete, KindWeatherDataReceived, KindNowPlayingDataReceived:
		return true
	}
	return false
}

// ResponseKind maps a request kind to the kind its answer is published under.
func ResponseKind(req Kind) (Kind, bool) {
	switch req {
	case KindTimeSyncRequest:
		return KindTimeSyncComplete, true
	case KindWeatherRequest:
		return KindWeatherDataReceived, true
	case KindNowPlayingRequest:
		return KindNowPlayingDataReceived, true
	}
	return "", false
}

func New(kind Kind, subject string) Event {
	return Event{Kind: kind, SubjectID: subject}
}

func NewWithPayload(kind Kind, subject, payload string) Event {
	return Event{Kind: kind, SubjectID: subject, Payload: payload}
}

// NewResponse builds a response-class event. Failures carry an empty payload.
func NewResponse(kind Kind, subject, payload string, success bool) Event {
	if !success {
		payload = ""
	}
	return Event{Kind: kind, SubjectID: subject, Payload: payload, Success: success}
}

func NewTitleUpdate(subject, title string) Event {
	return Event{Kind: KindCardTitleUpdated, SubjectID: subject, Title: title}
}

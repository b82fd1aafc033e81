package types

import "encoding/json"

// TimedMessageRequest is the payload accepted on the timed-message topic.
type TimedMessageRequest struct {
	// Message to display. May be a plain string, a layout array, or an
	// object with a "text" field, matching the message topic formats.
	Message json.RawMessage `json:"message"`
	// How long to keep the message on the board before restoring.
	DurationSeconds int `json:"duration_seconds"`
	// Optional slot to restore from when the timer expires. When empty
	// the current board state is snapshotted before the write.
	RestoreSlot string `json:"restore_slot,omitempty"`
	// Optional topic to publish the created timer id to.
	ResponseTopic string `json:"response_topic,omitempty"`
}

// TimedMessageResponse acknowledges a scheduled timed message.
type TimedMessageResponse struct {
	TimerID         string `json:"timer_id"`
	DurationSeconds int    `json:"duration_seconds"`
	RestoreSlot     string `json:"restore_slot,omitempty"`
}

// TimerInfo summarizes one active timer for list responses.
type TimerInfo struct {
	TimerID          string `json:"timer_id"`
	Status           string `json:"status"`
	DurationSeconds  int    `json:"duration_seconds"`
	RemainingSeconds int    `json:"remaining_seconds"`
	CreatedAt        int64  `json:"created_at"`
}

// TimerListResponse is published in reply to a list-timers request.
type TimerListResponse struct {
	ActiveTimers []TimerInfo `json:"active_timers"`
	TotalCount   int         `json:"total_count"`
	Timestamp    int64       `json:"timestamp"`
}

// StatusResponse is returned by GET /status on the HTTP surface.
type StatusResponse struct {
	Service       string  `json:"service"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	ActiveTimers  int     `json:"active_timers"`
	MQTTConnected bool    `json:"mqtt_connected"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

package mqttbridge

// Topic suffixes under the configured prefix.
const (
	topicMessage        = "message"
	topicSave           = "save/+"
	topicRestore        = "restore/+"
	topicDelete         = "delete/+"
	topicTimedMessage   = "timed-message"
	topicCancelTimer    = "cancel-timer/+"
	topicListTimers     = "list-timers"
	topicTimersResponse = "timers-response"
	topicStates         = "states"
)

// subscriptions lists every command topic the bridge listens on.
var subscriptions = []string{
	topicMessage,
	topicSave,
	topicRestore,
	topicDelete,
	topicTimedMessage,
	topicCancelTimer,
	topicListTimers,
}

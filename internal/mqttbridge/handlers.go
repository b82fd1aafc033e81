package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jfryman/vestaboard-mqtt/internal/board"
	"github.com/jfryman/vestaboard-mqtt/pkg/types"
)

// Duration used when a timed-message request omits duration_seconds.
const defaultTimedDuration = 60 * time.Second

// parseMessagePayload interprets a message payload: a JSON layout array,
// a JSON object with a "text" field, or plain text.
func parseMessagePayload(payload []byte) board.Message {
	var layout [][]int
	if err := json.Unmarshal(payload, &layout); err == nil {
		return board.LayoutMessage(layout)
	}
	var obj struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(payload, &obj); err == nil && obj.Text != nil {
		return board.TextMessage(*obj.Text)
	}
	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return board.TextMessage(s)
	}
	return board.TextMessage(string(payload))
}

func (b *Bridge) handleMessage(ctx context.Context, payload []byte) error {
	msg := parseMessagePayload(payload)
	if _, err := b.board.Show(ctx, msg); err != nil {
		b.log.Error().Err(err).Msg("failed to send message to board")
		return err
	}
	b.log.Info().Msg("message sent to board")
	return nil
}

func (b *Bridge) handleSave(ctx context.Context, slot string) error {
	cur, curID, err := b.board.Read(ctx)
	if err != nil {
		b.log.Error().Err(err).Str("slot", slot).Msg("failed to read board for save")
		return err
	}
	if _, err := b.states.Save(ctx, slot, cur.Layout, curID); err != nil {
		b.log.Error().Err(err).Str("slot", slot).Msg("save failed")
		return err
	}
	return nil
}

func (b *Bridge) handleRestore(ctx context.Context, slot string) error {
	snap, err := b.states.Load(ctx, slot)
	if err != nil {
		b.log.Error().Err(err).Str("slot", slot).Msg("restore failed")
		return err
	}
	if _, err := b.board.Show(ctx, board.LayoutMessage(snap.Layout)); err != nil {
		b.log.Error().Err(err).Str("slot", slot).Msg("failed to write restored state")
		return err
	}
	b.log.Info().Str("slot", slot).Time("saved_at", time.Unix(snap.SavedAt, 0)).Msg("restored state")
	return nil
}

func (b *Bridge) handleDelete(ctx context.Context, slot string) error {
	existed, err := b.states.Delete(ctx, slot)
	if err != nil {
		b.log.Error().Err(err).Str("slot", slot).Msg("delete failed")
		return err
	}
	if !existed {
		b.log.Warn().Str("slot", slot).Msg("delete: no saved state in slot")
	}
	return nil
}

func (b *Bridge) handleTimedMessage(ctx context.Context, payload []byte) error {
	var req types.TimedMessageRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		b.log.Error().Err(err).Msg("invalid timed message JSON")
		return err
	}
	if len(req.Message) == 0 {
		err := fmt.Errorf("timed message request missing 'message' field")
		b.log.Error().Msg(err.Error())
		return err
	}

	d := defaultTimedDuration
	if req.DurationSeconds != 0 {
		d = time.Duration(req.DurationSeconds) * time.Second
	}

	msg := parseMessagePayload(req.Message)
	timerID, err := b.sched.Schedule(ctx, msg, d, req.RestoreSlot)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to schedule timed message")
		return err
	}

	if req.ResponseTopic != "" {
		resp := types.TimedMessageResponse{
			TimerID:         timerID,
			DurationSeconds: int(d / time.Second),
			RestoreSlot:     req.RestoreSlot,
		}
		b.publishJSON(req.ResponseTopic, resp)
	}
	return nil
}

func (b *Bridge) handleCancelTimer(timerID string) error {
	if b.sched.Cancel(timerID) {
		b.log.Info().Str("timer_id", timerID).Msg("timer cancelled")
	} else {
		b.log.Info().Str("timer_id", timerID).Msg("cancel: no such active timer")
	}
	return nil
}

func (b *Bridge) handleListTimers(payload []byte) error {
	responseTopic := b.parseListTimersPayload(payload)

	timers := b.sched.List()
	resp := types.TimerListResponse{
		ActiveTimers: make([]types.TimerInfo, 0, len(timers)),
		TotalCount:   len(timers),
		Timestamp:    time.Now().Unix(),
	}
	for _, t := range timers {
		resp.ActiveTimers = append(resp.ActiveTimers, types.TimerInfo{
			TimerID:          t.ID,
			Status:           string(t.Status),
			DurationSeconds:  int(t.Duration / time.Second),
			RemainingSeconds: int(t.Remaining() / time.Second),
			CreatedAt:        t.CreatedAt.Unix(),
		})
	}

	b.publishJSON(responseTopic, resp)
	b.log.Info().Str("topic", responseTopic).Int("count", len(timers)).Msg("published timer list")
	return nil
}

// parseListTimersPayload extracts the response topic: a JSON object with
// response_topic, a plain topic string, or empty for the default.
func (b *Bridge) parseListTimersPayload(payload []byte) string {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return b.Topic(topicTimersResponse)
	}
	var obj struct {
		ResponseTopic string `json:"response_topic"`
	}
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		if obj.ResponseTopic != "" {
			return obj.ResponseTopic
		}
		return b.Topic(topicTimersResponse)
	}
	return trimmed
}

func (b *Bridge) publishJSON(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.log.Error().Err(err).Str("topic", topic).Msg("encoding response")
		return
	}
	token := b.client.Publish(topic, b.qos, false, payload)
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		b.log.Error().Err(token.Error()).Str("topic", topic).Msg("publishing response")
	}
}

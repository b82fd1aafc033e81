package board

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// The Local API tolerates roughly one write per second.
const localRateLimit = 1 * time.Second

// LocalClient talks to the Local API on the board itself. The Local API
// assigns no message ids, so the display identity is a hash of the layout:
// two writes with different content always yield different identities,
// which is all the identity contract requires.
type LocalClient struct {
	http      *resty.Client
	limiter   *rateLimiter
	boardType Type
	log       zerolog.Logger
}

func NewLocalClient(apiKey, host string, port int, bt Type, logger zerolog.Logger) *LocalClient {
	client := resty.New().
		SetBaseURL(fmt.Sprintf("http://%s:%d/local-api/message", host, port)).
		SetTimeout(10 * time.Second).
		SetHeader("X-Vestaboard-Local-Api-Key", apiKey).
		SetHeader("Content-Type", "application/json")
	logger.Info().
		Str("board_type", bt.String()).
		Str("host", host).
		Int("port", port).
		Msg("initialized Local API client")
	return &LocalClient{
		http:      client,
		limiter:   newRateLimiter(localRateLimit),
		boardType: bt,
		log:       logger,
	}
}

func (c *LocalClient) Show(ctx context.Context, msg Message) (id string, err error) {
	defer func() { observeWrite("local", err) }()

	layout := msg.Layout
	if !msg.IsLayout() {
		layout = TextToLayout(msg.Text, c.boardType)
	}

	if err = c.limiter.wait(ctx); err != nil {
		return "", err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(layout).
		Post("")
	if err != nil {
		return "", fmt.Errorf("local write: %w", err)
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return "", fmt.Errorf("local write: rate limited (429)")
	}
	if resp.IsError() {
		return "", fmt.Errorf("local write: status %d: %s", resp.StatusCode(), resp.String())
	}

	return layoutIdentity(layout), nil
}

func (c *LocalClient) Read(ctx context.Context) (msg Message, id string, err error) {
	defer func() { observeRead("local", err) }()

	resp, err := c.http.R().SetContext(ctx).Get("")
	if err != nil {
		return Message{}, "", fmt.Errorf("local read: %w", err)
	}
	if resp.IsError() {
		return Message{}, "", fmt.Errorf("local read: status %d: %s", resp.StatusCode(), resp.String())
	}

	layout, err := decodeLocalBody(resp.Body())
	if err != nil {
		return Message{}, "", fmt.Errorf("local read: %w", err)
	}
	return LayoutMessage(layout), layoutIdentity(layout), nil
}

// decodeLocalBody handles both the direct array response and the
// {"message": [...]} wrapper the Local API has returned across firmware
// versions.
func decodeLocalBody(body []byte) ([][]int, error) {
	var layout [][]int
	if err := json.Unmarshal(body, &layout); err == nil {
		return layout, nil
	}
	var wrapped struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil || len(wrapped.Message) == 0 {
		return nil, fmt.Errorf("unrecognized response body")
	}
	return decodeLayout(wrapped.Message)
}

// layoutIdentity derives the identity token from content.
func layoutIdentity(layout [][]int) string {
	b, _ := json.Marshal(layout)
	sum := sha256.Sum256(b)
	return "local-" + hex.EncodeToString(sum[:6])
}

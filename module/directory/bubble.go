package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"NapChat/logger"
	"NapChat/tools/decode"

	"go.uber.org/zap"
)

// Resolution workflow API 对 (child, sender) 的应答。
// Recipients 为空即“本条消息没人收”，上层按部分失败继续。
type Resolution struct {
	Recipients         []Recipient
	SenderName         string
	PrimaryCaregiverID string
	AltOrg             string
}

type Recipient struct {
	UserID    string   `json:"userId"`
	PlayerIDs []string `json:"playerIds"`
}

// bubble 返回体（workflow 风格外层包一层 response）。
type bubbleResponse struct {
	Status   string `json:"status"`
	Response struct {
		Recipients         []Recipient `json:"recipients"`
		SenderName         string      `json:"senderName"`
		PrimaryCaregiverID string      `json:"primaryCaregiverId"`
		AltOrg             string      `json:"altOrg"`
	} `json:"response"`
}

// Client 收件人目录适配器。窄接口隔离 workflow API 的易变性。
type Client struct {
	Endpoint string
	Token    string
	HTTP     *http.Client
}

func NewClient(endpoint, token string) *Client {
	return &Client{
		Endpoint: endpoint,
		Token:    token,
		HTTP:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Resolve 单次 HTTP 调用。任何失败（非2xx/传输错误/解码失败）都不抛，
// 返回空收件人 + SenderName="Someone"，让计数无关的部分继续推进。
func (c *Client) Resolve(ctx context.Context, childID, senderID string) Resolution {
	fallback := Resolution{SenderName: "Someone"}

	payload, _ := json.Marshal(map[string]string{"childId": childID, "senderId": senderID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		logger.Error("directory request build", zap.Error(err))
		return fallback
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		logger.Error("directory call failed", zap.String("childId", childID), zap.String("senderId", senderID), zap.Error(err))
		return fallback
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Error("directory non-2xx",
			zap.Int("status", resp.StatusCode),
			zap.String("childId", childID),
			zap.ByteString("body", body))
		return fallback
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		logger.Error("directory decode", zap.Error(err))
		return fallback
	}
	br, err := decode.Map[bubbleResponse](raw)
	if err != nil {
		logger.Error("directory map decode", zap.Error(err))
		return fallback
	}

	out := Resolution{
		Recipients:         br.Response.Recipients,
		SenderName:         br.Response.SenderName,
		PrimaryCaregiverID: br.Response.PrimaryCaregiverID,
		AltOrg:             br.Response.AltOrg,
	}
	if out.SenderName == "" {
		out.SenderName = "Someone"
	}
	return out
}

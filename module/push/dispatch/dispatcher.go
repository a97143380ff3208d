package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"NapChat/logger"

	"go.uber.org/zap"
)

// AppCred 单个推送租户的凭据。AppID/APIKey 缺一即视为未配置。
type AppCred struct {
	Name   string
	AppID  string
	APIKey string
}

func (a AppCred) configured() bool { return a.AppID != "" && a.APIKey != "" }

// GroupIDs 每应用的 device-group（player id）列表。
type GroupIDs struct {
	AppA []string
	AppB []string
}

// AppResult 单应用的投递结果；两应用互不影响。
type AppResult struct {
	App     string `json:"app"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Dispatcher 广播器。AppA/AppB 凭据显式注入，不走全局状态。
type Dispatcher struct {
	Endpoint string
	AppA     AppCred
	AppB     AppCred
	HTTP     *http.Client

	// 诊断用的遗留单 token 直发配置。
	LegacyEndpoint string
	LegacyKeyA     string
	LegacyKeyB     string
}

func NewDispatcher(endpoint string, appA, appB AppCred) *Dispatcher {
	return &Dispatcher{
		Endpoint: endpoint,
		AppA:     appA,
		AppB:     appB,
		HTTP:     &http.Client{Timeout: 15 * time.Second},
	}
}

// DispatchToAllApps 对每个有 group id 的应用各发一次广播，两路并发，
// 单边失败（缺凭据/非2xx/传输错误）只记入该边结果。整体成功 = 任一边成功。
func (d *Dispatcher) DispatchToAllApps(ctx context.Context, ids GroupIDs, title, body string, data map[string]any) (bool, []AppResult) {
	type target struct {
		cred AppCred
		ids  []string
	}
	targets := []target{
		{d.AppA, ids.AppA},
		{d.AppB, ids.AppB},
	}

	results := make([]AppResult, 0, 2)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, t := range targets {
		if !t.cred.configured() {
			results = append(results, AppResult{App: t.cred.Name, Success: false, Error: "Missing credentials"})
			continue
		}
		if len(t.ids) == 0 {
			continue
		}
		wg.Add(1)
		go func(t target) {
			defer wg.Done()
			res := d.broadcast(ctx, t.cred, t.ids, title, body, data)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(t)
	}
	wg.Wait()

	sent := false
	for _, r := range results {
		if r.Success {
			sent = true
		}
	}
	return sent, results
}

func (d *Dispatcher) broadcast(ctx context.Context, cred AppCred, playerIDs []string, title, body string, data map[string]any) AppResult {
	payload := map[string]any{
		"app_id":             cred.AppID,
		"include_player_ids": playerIDs,
		"headings":           map[string]string{"en": title},
		"contents":           map[string]string{"en": body},
		"data":               data,
	}
	raw, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, bytes.NewReader(raw))
	if err != nil {
		return AppResult{App: cred.Name, Success: false, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+cred.APIKey)

	resp, err := d.HTTP.Do(req)
	if err != nil {
		logger.Error("push broadcast failed", zap.String("app", cred.Name), zap.Error(err))
		return AppResult{App: cred.Name, Success: false, Error: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Error("push broadcast non-2xx",
			zap.String("app", cred.Name), zap.Int("status", resp.StatusCode), zap.ByteString("body", respBody))
		return AppResult{App: cred.Name, Success: false, Error: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	logger.Debug("push broadcast accepted", zap.String("app", cred.Name), zap.Int("players", len(playerIDs)))
	return AppResult{App: cred.Name, Success: true}
}

// SendViaLegacyProject 诊断/测试用的单 token 直发：走先配置的那个遗留连接。
// 主管道不会用到这条路径。
func (d *Dispatcher) SendViaLegacyProject(ctx context.Context, fcmToken, title, body string) error {
	key := d.LegacyKeyA
	if key == "" {
		key = d.LegacyKeyB
	}
	if key == "" {
		return fmt.Errorf("no legacy project configured")
	}

	payload := map[string]any{
		"to": fcmToken,
		"notification": map[string]string{
			"title": title,
			"body":  body,
		},
	}
	raw, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.LegacyEndpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+key)

	resp, err := d.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("legacy send status %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

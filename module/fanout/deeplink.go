package fanout

import (
	"net/url"
	"strings"
)

// NotificationBody 推送正文：媒体消息用固定文案，文本超 100 字截到 97 + 省略号。
func NotificationBody(text, imageRef, audioRef string) string {
	body := text
	if body == "" {
		switch {
		case imageRef != "":
			body = "Sent an image"
		case audioRef != "":
			body = "Audio message"
		}
	}
	runes := []rune(body)
	if len(runes) > 100 {
		return string(runes[:97]) + "…"
	}
	return body
}

// NotificationTitle 标题 = 去空白后的发送者名，空则 "Someone"。
func NotificationTitle(senderName string) string {
	t := strings.TrimSpace(senderName)
	if t == "" {
		return "Someone"
	}
	return t
}

// BuildDeepLink 点开通知后的落地链接。
// 路径段按版本标记选择：dev/test 走版本化路径，其余走生产根。
// 后缀选 log2 / chat2，query 带主看护人、alt-org，日志评论再带 log id。
func BuildDeepLink(base, version string, isLogComment bool, logID, primaryCaregiverID, altOrg string) string {
	path := ""
	switch version {
	case "dev":
		path = "/version-dev"
	case "test":
		path = "/version-test"
	}

	suffix := "/chat2"
	if isLogComment {
		suffix = "/log2"
	}

	q := url.Values{}
	q.Set("caregiver", primaryCaregiverID)
	q.Set("altorg", altOrg)
	if isLogComment {
		q.Set("log", logID)
	}

	return base + path + suffix + "?" + q.Encode()
}

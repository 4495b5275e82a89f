package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/template"
	"time"

	"netshield-detector/internal/aggregator"

	"github.com/sirupsen/logrus"
)

type TelegramNotifier struct {
	botToken        string
	chatID          string
	parseMode       string
	enabled         bool
	messageTemplate *template.Template
	client          *http.Client
	logger          *logrus.Logger
}

type TelegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type TelegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

func NewTelegramNotifier(botToken, chatID, parseMode string, enabled bool, logger *logrus.Logger) *TelegramNotifier {
	return NewTelegramNotifierWithTemplate(botToken, chatID, parseMode, enabled, "", logger)
}

func NewTelegramNotifierWithTemplate(botToken, chatID, parseMode string, enabled bool, messageTemplate string, logger *logrus.Logger) *TelegramNotifier {
	tn := &TelegramNotifier{
		botToken:  botToken,
		chatID:    chatID,
		parseMode: parseMode,
		enabled:   enabled,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}

	if strings.TrimSpace(messageTemplate) != "" {
		funcMap := template.FuncMap{
			"formatTime": func(t time.Time, layout string) string {
				return t.Format(layout)
			},
		}
		tmpl, err := template.New("telegram_message").Funcs(funcMap).Parse(messageTemplate)
		if err != nil {
			logger.Warnf("Failed to parse Telegram message template: %v, using default format", err)
		} else {
			tn.messageTemplate = tmpl
		}
	}

	return tn
}

func (tn *TelegramNotifier) IsEnabled() bool {
	return tn.enabled
}

func (tn *TelegramNotifier) Send(notification aggregator.Notification) error {
	if !tn.enabled {
		tn.logger.Debug("Telegram notifier is disabled, skipping notification")
		return nil
	}

	message := tn.formatMessage(notification)

	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		err := tn.sendMessage(message)
		if err == nil {
			return nil
		}

		tn.logger.Warnf("Failed to send notification (attempt %d/%d): %v", i+1, maxRetries, err)

		if i < maxRetries-1 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}

	return fmt.Errorf("failed to send notification after %d attempts", maxRetries)
}

func (tn *TelegramNotifier) formatMessage(notification aggregator.Notification) string {
	if tn.messageTemplate != nil {
		var buf bytes.Buffer
		if err := tn.messageTemplate.Execute(&buf, notification); err != nil {
			tn.logger.Warnf("Failed to execute message template: %v, using default format", err)
		} else {
			return buf.String()
		}
	}

	timestamp := notification.Timestamp.Format("2006-01-02 15:04:05")

	if notification.Alert != nil {
		a := notification.Alert
		return fmt.Sprintf("🚨 *Security Alert*\n\n*Severity:* %s\n*Attack:* %s\n*Source:* `%s`\n*Destination:* `%s`\n*Confidence:* %.0f%%\n*Time:* %s",
			a.Severity, a.AttackType, a.SourceIP, a.DestIP, a.ConfidenceScore*100, timestamp)
	}
	return fmt.Sprintf("⚠️ *%s*\n\n%s\n*Time:* %s", notification.Kind, notification.Message, timestamp)
}

func (tn *TelegramNotifier) sendMessage(text string) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", tn.botToken)

	msg := TelegramMessage{
		ChatID:    tn.chatID,
		Text:      text,
		ParseMode: tn.parseMode,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %v", err)
	}

	resp, err := tn.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	var tgResp TelegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tgResp); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	if !tgResp.OK {
		return fmt.Errorf("telegram API error: %s", tgResp.Description)
	}

	return nil
}

// SendTestMessage sends a connectivity check message.
func (tn *TelegramNotifier) SendTestMessage() error {
	return tn.sendMessage("NetShield detector: test notification")
}

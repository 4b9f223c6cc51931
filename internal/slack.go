package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/valyala/fasttemplate"
)

const firecrackers = ":firecracker: :firecracker: :firecracker: :firecracker: :firecracker: :firecracker: :firecracker:"

var ErrPayloadRejected = errors.New("slack rejected payload")

type SlackConfig struct {
	WebhookURL       string
	Namespace        string
	Cluster          string
	TraceURLTemplate string
	LogsURLTemplate  string
	Timeout          time.Duration
}

// SlackNotifier posts block-kit alerts to an incoming webhook.
type SlackNotifier struct {
	cfg        SlackConfig
	traceURL   *fasttemplate.Template
	logsURL    *fasttemplate.Template
	httpClient *http.Client
}

func NewSlackNotifier(cfg SlackConfig) (*SlackNotifier, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	n := &SlackNotifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	var err error
	if n.traceURL, err = newLinkTemplate(cfg.TraceURLTemplate); err != nil {
		return nil, fmt.Errorf("invalid trace url template: %w", err)
	}
	if n.logsURL, err = newLinkTemplate(cfg.LogsURLTemplate); err != nil {
		return nil, fmt.Errorf("invalid logs url template: %w", err)
	}
	return n, nil
}

func newLinkTemplate(tpl string) (*fasttemplate.Template, error) {
	if tpl == "" {
		return nil, nil
	}
	return fasttemplate.NewTemplate(tpl, "{", "}")
}

func (n *SlackNotifier) Notify(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(n.Alert(env))
	if err != nil {
		return fmt.Errorf("json.Marshal() failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http.NewRequest() failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("n.httpClient.Do(req) failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading slack response failed: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("slack returned http error %d: %s", resp.StatusCode, respBody)
	}
	if string(respBody) != "ok" {
		return fmt.Errorf("%w: %s", ErrPayloadRejected, respBody)
	}
	return nil
}

type block map[string]any

func plainText(text string) block {
	return block{"type": "plain_text", "text": text, "emoji": true}
}

func section(text block) block {
	return block{"type": "section", "text": text}
}

func linkSection(text, label, link string) block {
	return block{
		"type": "section",
		"text": block{"type": "mrkdwn", "text": text},
		"accessory": block{
			"type":      "button",
			"text":      block{"type": "plain_text", "text": label},
			"url":       link,
			"action_id": "button-action",
		},
	}
}

func richText(elementType string, inner block) block {
	return block{
		"type": "rich_text",
		"elements": []block{{
			"type":     elementType,
			"elements": []block{inner},
		}},
	}
}

// Alert renders the webhook payload for env.
func (n *SlackNotifier) Alert(env Envelope) map[string]any {
	blocks := []block{
		{"type": "header", "text": plainText(":wood: " + env.Container)},
		richText("rich_text_section", block{"type": "text", "text": env.Pod, "style": block{"italic": true}}),
		section(plainText(n.cfg.Cluster)),
		{"type": "divider"},
		section(plainText(firecrackers)),
	}
	if env.Record.LoggerName != "" {
		blocks = append(blocks, section(plainText(env.Record.LoggerName)))
	}
	blocks = append(blocks,
		richText("rich_text_preformatted", block{"type": "text", "text": env.Record.Message}),
		section(plainText(firecrackers)),
		block{"type": "divider"},
	)

	vars := n.linkVars(env)
	if n.traceURL != nil {
		blocks = append(blocks, linkSection("trace_id: "+env.Record.TraceID, "trace", n.traceURL.ExecuteString(vars)))
	} else {
		blocks = append(blocks, section(block{"type": "mrkdwn", "text": "trace_id: " + env.Record.TraceID}))
	}
	if n.logsURL != nil {
		blocks = append(blocks, linkSection(fmt.Sprintf("Filter on %s in logs", env.Container), "logs", n.logsURL.ExecuteString(vars)))
	}

	return map[string]any{
		"text":   fmt.Sprintf("%s/%s: %s", env.Pod, env.Container, firstLine(env.Record.Message)),
		"blocks": blocks,
	}
}

func (n *SlackNotifier) linkVars(env Envelope) map[string]any {
	timestamp := env.Record.Timestamp
	if timestamp == "" {
		timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return map[string]any{
		"trace_id":  url.QueryEscape(env.Record.TraceID),
		"container": url.QueryEscape(env.Container),
		"pod":       url.QueryEscape(env.Pod),
		"namespace": url.QueryEscape(n.cfg.Namespace),
		"cluster":   url.QueryEscape(n.cfg.Cluster),
		"timestamp": url.QueryEscape(timestamp),
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

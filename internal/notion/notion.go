// Package notion exports archived entries as pages in a Notion database.
// Export is strictly best-effort; the caller treats every failure as
// log-and-continue.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dumpzone/internal/daybook/model"
	"dumpzone/internal/textutil"
)

const (
	apiBase    = "https://api.notion.com/v1"
	apiVersion = "2022-06-28"
	// Notion caps rich text objects at 2000 characters.
	maxTextLen = 2000
)

type Client struct {
	token      string
	databaseID string
	baseURL    string
	http       *http.Client
}

func NewClient(token, databaseID string) *Client {
	return &Client{
		token:      token,
		databaseID: databaseID,
		baseURL:    apiBase,
		http:       &http.Client{Timeout: 20 * time.Second},
	}
}

// Connected reports whether export is configured at all. An unconfigured
// client is valid and simply exports nothing.
func (c *Client) Connected() bool {
	return c.token != "" && c.databaseID != ""
}

type richText struct {
	Type string `json:"type"`
	Text struct {
		Content string `json:"content"`
	} `json:"text"`
}

func text(s string) richText {
	var rt richText
	rt.Type = "text"
	rt.Text.Content = s
	return rt
}

type paragraphBlock struct {
	Object    string `json:"object"`
	Type      string `json:"type"`
	Paragraph struct {
		RichText []richText `json:"rich_text"`
	} `json:"paragraph"`
}

func paragraph(s string) paragraphBlock {
	var b paragraphBlock
	b.Object = "block"
	b.Type = "paragraph"
	b.Paragraph.RichText = []richText{text(s)}
	return b
}

type createPageRequest struct {
	Parent struct {
		DatabaseID string `json:"database_id"`
	} `json:"parent"`
	Properties map[string]interface{} `json:"properties"`
	Children   []paragraphBlock       `json:"children"`
}

// ExportEntry creates one page titled with the entry's date. The entry body
// is stripped to plain text and split into paragraph blocks. An entry whose
// content strips down to nothing is skipped without error.
func (c *Client) ExportEntry(ctx context.Context, entry model.Entry) error {
	if !c.Connected() {
		return fmt.Errorf("notion: not configured")
	}

	plain := strings.TrimSpace(textutil.StripHTML(entry.Content))
	if plain == "" {
		return nil
	}

	var req createPageRequest
	req.Parent.DatabaseID = c.databaseID
	req.Properties = map[string]interface{}{
		"Name": map[string]interface{}{
			"title": []richText{text(entry.Date)},
		},
	}
	for _, line := range splitBlocks(plain) {
		req.Children = append(req.Children, paragraph(line))
	}
	if len(entry.Tags) > 0 {
		req.Children = append(req.Children, paragraph("Tags: "+strings.Join(entry.Tags, ", ")))
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("notion: encode page: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notion: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Notion-Version", apiVersion)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("notion: create page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notion: create page: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// splitBlocks breaks plain text into paragraph-sized chunks, splitting on
// blank lines first and then hard-wrapping anything over the API limit.
func splitBlocks(plain string) []string {
	blocks := []string{}
	for _, para := range strings.Split(plain, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for len(para) > maxTextLen {
			blocks = append(blocks, para[:maxTextLen])
			para = para[maxTextLen:]
		}
		blocks = append(blocks, para)
	}
	return blocks
}

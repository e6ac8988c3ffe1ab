package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/groupcart/payproof/internal/extract"
)

const systemPrompt = "You are a payment screenshot reader. The image is a " +
	"proof of a bank or e-wallet transfer. List every completed payment you " +
	"can see as a candidate with its amount, reference/transaction code, and " +
	"payment method. Use plain decimal amounts without currency symbols or " +
	"thousands separators. Give a 0..1 confidence per candidate and an " +
	"overall_confidence for the whole reading. Set requires_review to true " +
	"if the screenshot is cropped, blurry, edited, or shows no completed " +
	"payment. Return ONLY JSON that matches the provided schema. Never " +
	"output null; omit fields you cannot read."

// Extract implements extract.Extractor using vision chat/completions.
// The reply is validated against the extraction schema before decode.
func (c *Client) Extract(ctx context.Context, imagePath, hint string) (extract.Result, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	dataURL, err := encodeImage(imagePath)
	if err != nil {
		// Unreadable or unsupported input cannot be fixed by retrying.
		return extract.Result{}, nil, extract.Permanent(err)
	}

	schema := extract.BuildExtractionJSONSchema()
	c.log.Info("extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"image", filepath.Base(imagePath),
	)

	userParts := []map[string]any{
		{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
		{"type": "text", "text": "JSON Schema:\n" + mustJSON(schema)},
	}
	if hint != "" {
		userParts = append(userParts, map[string]any{
			"type": "text", "text": "Context from the uploader: " + hint,
		})
	}

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userParts},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, httpErr := c.post(ctx, endpoint, body)
	if httpErr != nil {
		c.log.Error("extract.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.Result{}, nil, httpErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.Result{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return extract.Result{}, raw, fmt.Errorf("no choices in openai response")
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	if err := extract.ValidateJSONAgainstSchema(schema, content); err != nil {
		c.log.Error("extract.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.Result{}, content, fmt.Errorf("schema validation failed: %w", err)
	}

	var out extract.Result
	if err := json.Unmarshal(content, &out); err != nil {
		return extract.Result{}, content, fmt.Errorf("unmarshal result: %w", err)
	}

	c.log.Info("extract.ok",
		"req_id", rid,
		"candidates", len(out.Candidates),
		"overall_confidence", out.OverallConfidence,
		"requires_review", out.RequiresReview,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("openai status %d: %s", resp.StatusCode, buf.String())
		// 4xx means the request itself is bad; retrying the same image
		// cannot change the answer.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, extract.Permanent(err)
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeImage(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if !strings.HasPrefix(mt, "image/") {
		return "", fmt.Errorf("unsupported image format: %s", filepath.Ext(path))
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(b), nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

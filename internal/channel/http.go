package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const userAgent = "go-alert-dispatch/1.0"

// postJSON sends body and returns the response status code. Non-2xx
// responses are returned as errors carrying a trimmed response body.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		trimmed := strings.TrimSpace(string(respBody))
		if trimmed == "" {
			trimmed = resp.Status
		}
		return resp.StatusCode, fmt.Errorf("status %d (%s)", resp.StatusCode, trimmed)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// outcomeFor maps an accepted HTTP response to a delivery outcome. 202 means
// the upstream queued the message without confirming it.
func outcomeFor(statusCode int) Outcome {
	if statusCode == http.StatusAccepted {
		return Pending()
	}
	return Sent()
}

func computeHMAC(message, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

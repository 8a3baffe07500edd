package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeoutSeconds = 15

// maxResponseBytes caps how much of a vendor response is read for message-id
// extraction and error detail.
const maxResponseBytes = 64 * 1024

// Call is a vendor HTTP request: the shared shape every HTTP-backed Sender
// uses. BasicUser/BasicPass set basic auth when BasicUser is non-empty.
type Call struct {
	Method    string
	URL       string
	Headers   map[string]string
	Form      url.Values // form-encoded body when set
	JSONBody  string     // JSON body when Form is nil
	BasicUser string
	BasicPass string
}

// Do executes the call and classifies the outcome: network errors and 5xx
// responses are transient, 4xx responses are permanent. The response body is
// returned for message-id extraction.
func Do(ctx context.Context, call Call) (string, Result) {
	var bodyReader io.Reader

	contentType := ""

	switch {
	case call.Form != nil:
		bodyReader = strings.NewReader(call.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case call.JSONBody != "":
		bodyReader = strings.NewReader(call.JSONBody)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, call.URL, bodyReader)
	if err != nil {
		return "", Failure(ErrorKindPermanent, fmt.Sprintf("failed to build request: %v", err))
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	for key, value := range call.Headers {
		req.Header.Set(key, value)
	}

	if call.BasicUser != "" {
		req.SetBasicAuth(call.BasicUser, call.BasicPass)
	}

	client := &http.Client{Timeout: defaultTimeoutSeconds * time.Second}

	resp, err := client.Do(req)
	if err != nil {
		return "", Failure(ErrorKindTransient, fmt.Sprintf("request failed: %v", err))
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", Failure(ErrorKindTransient, fmt.Sprintf("failed to read response: %v", err))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return string(body), Result{Success: true}
	case resp.StatusCode >= 500:
		return string(body), Failure(ErrorKindTransient, fmt.Sprintf("vendor returned %d: %s", resp.StatusCode, truncate(string(body))))
	default:
		return string(body), Failure(ErrorKindPermanent, fmt.Sprintf("vendor returned %d: %s", resp.StatusCode, truncate(string(body))))
	}
}

func truncate(s string) string {
	const limit = 200
	if len(s) <= limit {
		return s
	}

	return s[:limit] + "..."
}

package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/trackd/filewatchrest/pkg/config"
	"github.com/trackd/filewatchrest/pkg/resilience"
)

// metadataPart mirrors the JSON object sent alongside the file part in a
// multipart request.
type metadataPart struct {
	Path          string `json:"path"`
	FileSize      int64  `json:"fileSize"`
	LastWriteTime string `json:"lastWriteTime"`
}

// useMultipartFor decides the encoding for a notification: multipart only
// when contents are being posted and the size is strictly above the
// streaming threshold yet within the content cap; everything else,
// including a size exactly at the threshold, goes as JSON.
func useMultipartFor(n Notification, cfg config.RestPostConfig) bool {
	return cfg.PostFileContents && n.FileSize > cfg.StreamingThresholdBytes && n.FileSize <= cfg.MaxContentBytes
}

// dispatch builds the resilience.RequestFactory for notification and runs
// it through the Dispatcher. The factory is invoked once per attempt so
// each retry gets a fresh request body.
func (p *Pool) dispatch(ctx context.Context, n Notification, cfg config.RestPostConfig) resilience.Outcome {
	useMultipart := useMultipartFor(n, cfg)

	method := "json"
	if useMultipart {
		method = "multipart"
	}
	p.log.Debug("dispatching", "path", n.Path, "size", n.FileSize, "method", method, "url", cfg.Endpoint)

	factory := func(ctx context.Context) (*http.Request, error) {
		var (
			req *http.Request
			err error
		)
		if useMultipart {
			req, err = buildMultipartRequest(ctx, cfg.Endpoint, n)
		} else {
			req, err = buildJSONRequest(ctx, cfg.Endpoint, n)
		}
		if err != nil {
			return nil, err
		}

		if cfg.Bearer != "" {
			req.Header.Set("Authorization", "Bearer "+strings.TrimPrefix(cfg.Bearer, "Bearer "))
		}
		req.Header.Set("X-Request-Id", requestID())
		return req, nil
	}

	policy := resilience.Policy{
		Retries:                        cfg.Retries,
		RetryDelayMs:                   cfg.RetryDelayMs,
		EnableCircuitBreaker:           cfg.EnableCircuitBreaker,
		CircuitBreakerFailureThreshold: cfg.CircuitBreakerFailureThreshold,
		CircuitBreakerOpenDurationMs:   cfg.CircuitBreakerOpenDurationMs,
	}

	return p.dispatcher.Execute(ctx, cfg.Endpoint, policy, factory)
}

// requestID returns a 32-char lowercase hex correlation id for the
// X-Request-Id header.
func requestID() string {
	u := uuid.New()
	return fmt.Sprintf("%x", [16]byte(u))
}

func buildJSONRequest(ctx context.Context, endpoint string, n Notification) (*http.Request, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func buildMultipartRequest(ctx context.Context, endpoint string, n Notification) (*http.Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	meta := metadataPart{
		Path:          n.Path,
		FileSize:      n.FileSize,
		LastWriteTime: n.LastWriteTime.Format("2006-01-02T15:04:05.000Z07:00"),
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata part: %w", err)
	}

	metaHeader := make(map[string][]string)
	metaHeader["Content-Disposition"] = []string{`form-data; name="metadata"`}
	metaHeader["Content-Type"] = []string{"application/json"}
	metaPart, err := w.CreatePart(metaHeader)
	if err != nil {
		return nil, err
	}
	if _, err := metaPart.Write(metaBytes); err != nil {
		return nil, err
	}

	fileHeader := make(map[string][]string)
	fileHeader["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename="%s"`, filepath.Base(n.Path))}
	fileHeader["Content-Type"] = []string{"application/octet-stream"}
	filePart, err := w.CreatePart(fileHeader)
	if err != nil {
		return nil, err
	}
	if _, err := filePart.Write([]byte(n.Content)); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

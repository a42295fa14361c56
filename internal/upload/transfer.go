package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"cdbs/internal/services"
)

// Transferer delivers one file's bytes to its destination.
type Transferer interface {
	Put(ctx context.Context, url string, body []byte) error
}

// HTTPDoer describes the HTTP client used for destination transfers.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPTransferer PUTs raw bytes to pre-authorized storage URLs. Destinations
// are not the CDBS API, so no credentials or envelope are added.
type HTTPTransferer struct {
	client HTTPDoer
}

// NewHTTPTransferer returns a transferer using client, or a default
// http.Client when client is nil.
func NewHTTPTransferer(client HTTPDoer) *HTTPTransferer {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransferer{client: client}
}

// Put sends body to url. Any 2xx response is success; anything else returns a
// *services.HTTPStatusError.
func (t *HTTPTransferer) Put(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build transfer request: %w", err)
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Content-Length", strconv.Itoa(len(body)))

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("transfer request: %w", err)
	}
	defer resp.Body.Close()

	if !services.IsSuccessStatus(resp.StatusCode) {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &services.HTTPStatusError{StatusCode: resp.StatusCode, Body: string(detail)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func transferStage(ctx context.Context, transferer Transferer, d Descriptor, data []byte) error {
	err := transferer.Put(ctx, d.DestinationURL, data)
	if err == nil {
		return nil
	}
	failure := &TransferFailure{Filename: d.Filename, FileID: d.FileID, Err: err}
	var statusErr *services.HTTPStatusError
	if errors.As(err, &statusErr) {
		failure.StatusCode = statusErr.StatusCode
	}
	return failure
}

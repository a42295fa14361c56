package upload_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cdbs/internal/services"
	"cdbs/internal/upload"
)

func TestHTTPTransfererPutsRawBytes(t *testing.T) {
	var gotMethod, gotType, gotAuth string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	transferer := upload.NewHTTPTransferer(server.Client())
	if err := transferer.Put(context.Background(), server.URL+"/bucket/a.png?sig=abc", []byte{0x89, 'P', 'N', 'G'}); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Fatalf("expected PUT, got %s", gotMethod)
	}
	if gotType != "application/octet-stream" {
		t.Fatalf("unexpected content type %q", gotType)
	}
	if gotAuth != "" {
		t.Fatalf("destination must not receive credentials, got %q", gotAuth)
	}
	if string(gotBody) != "\x89PNG" {
		t.Fatalf("body was transformed: %q", gotBody)
	}
}

func TestHTTPTransfererMapsStatus(t *testing.T) {
	tests := []struct {
		status int
		marker error
	}{
		{http.StatusUnauthorized, services.ErrUnauthorized},
		{http.StatusForbidden, services.ErrUnauthorized},
		{http.StatusNotFound, services.ErrNotFound},
		{http.StatusUnprocessableEntity, services.ErrValidation},
		{http.StatusInternalServerError, services.ErrTransient},
		{http.StatusBadGateway, services.ErrTransient},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte("expired signature"))
		}))
		err := upload.NewHTTPTransferer(server.Client()).Put(context.Background(), server.URL, []byte("x"))
		server.Close()

		var statusErr *services.HTTPStatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.status {
			t.Fatalf("status %d: expected HTTPStatusError, got %v", tt.status, err)
		}
		if !errors.Is(err, tt.marker) {
			t.Fatalf("status %d: expected marker %v, got %v", tt.status, tt.marker, err)
		}
	}
}

func TestHTTPTransfererNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	err := upload.NewHTTPTransferer(nil).Put(context.Background(), url, []byte("x"))
	if err == nil {
		t.Fatal("expected network error")
	}
	var statusErr *services.HTTPStatusError
	if errors.As(err, &statusErr) {
		t.Fatalf("network error must not carry a status, got %v", err)
	}
}

func TestPipelineRecordsTransferStatusCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	files := makeFiles(1)
	files[0].DestinationURL = server.URL + "/a"
	p, err := upload.NewPipeline(upload.NewHTTPTransferer(server.Client()), newRecordingConfirmer())
	if err != nil {
		t.Fatalf("NewPipeline returned error: %v", err)
	}
	outcome, err := p.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(outcome.Failed) != 1 {
		t.Fatalf("expected one failure, got %+v", outcome.Failed)
	}
	var failure *upload.TransferFailure
	if !errors.As(outcome.Failed[0].Err, &failure) {
		t.Fatalf("expected TransferFailure, got %v", outcome.Failed[0].Err)
	}
	if failure.StatusCode != http.StatusForbidden || failure.Filename != files[0].Filename {
		t.Fatalf("unexpected failure %+v", failure)
	}
}

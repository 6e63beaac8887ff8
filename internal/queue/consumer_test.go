package queue

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestJobPayloadUnmarshalsBase64Buffer(t *testing.T) {
	raw := []byte(`{
		"jobId": "job-1",
		"userId": "user-1",
		"filename": "lamp.jpg",
		"mimeType": "image/jpeg",
		"fileBuffer": "aGVsbG8gd29ybGQ=",
		"title": "Desk Lamp",
		"skipMatting": true
	}`)

	var payload JobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if payload.JobID != "job-1" {
		t.Errorf("jobId = %q, want job-1", payload.JobID)
	}
	if !bytes.Equal(payload.FileBuffer, []byte("hello world")) {
		t.Errorf("fileBuffer = %q, want hello world", payload.FileBuffer)
	}
	if payload.Title != "Desk Lamp" {
		t.Errorf("title = %q, want Desk Lamp", payload.Title)
	}
	if !payload.SkipMatting {
		t.Error("skipMatting = false, want true")
	}
}

func TestJobPayloadUnmarshalsNodeBufferObject(t *testing.T) {
	raw := []byte(`{
		"jobId": "job-2",
		"filename": "tag.png",
		"fileBuffer": {"type": "Buffer", "data": [104, 105]}
	}`)

	var payload JobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if !bytes.Equal(payload.FileBuffer, []byte("hi")) {
		t.Errorf("fileBuffer = %q, want hi", payload.FileBuffer)
	}
}

func TestJobPayloadWithoutBufferLeavesNil(t *testing.T) {
	raw := []byte(`{"jobId": "job-3", "filename": "shelf.jpg", "fileUrl": "https://cdn.example.com/shelf.jpg"}`)

	var payload JobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if payload.FileBuffer != nil {
		t.Errorf("fileBuffer = %v, want nil", payload.FileBuffer)
	}
	if payload.FileURL != "https://cdn.example.com/shelf.jpg" {
		t.Errorf("fileUrl = %q", payload.FileURL)
	}
}

func TestJobPayloadRejectsMalformedBuffers(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"invalid base64", `{"jobId": "j", "fileBuffer": "not!!base64"}`},
		{"wrong buffer type", `{"jobId": "j", "fileBuffer": {"type": "Blob", "data": [1]}}`},
		{"missing data array", `{"jobId": "j", "fileBuffer": {"type": "Buffer"}}`},
		{"numeric buffer", `{"jobId": "j", "fileBuffer": 42}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var payload JobPayload
			if err := json.Unmarshal([]byte(tc.raw), &payload); err == nil {
				t.Errorf("Unmarshal(%s) succeeded, want error", tc.raw)
			}
		})
	}
}

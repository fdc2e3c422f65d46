// Package http contains the HTTP adapters for the sync service: the
// frame sender and the watermark pull client.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/bft-labs/walsync/internal/domain"
	"github.com/bft-labs/walsync/internal/engine"
	"github.com/bft-labs/walsync/internal/ports"
	"github.com/bft-labs/walsync/pkg/log"
)

const framesEndpoint = "/v1/sync/frames"

// frameMeta is one manifest entry describing a frame in the request body.
type frameMeta struct {
	Num   uint64 `json:"num"`
	Len   int    `json:"len"`
	CRC32 uint32 `json:"crc32"`
}

// manifest describes the pushed range; the frame payloads follow
// concatenated in a separate multipart part, in manifest order.
type manifest struct {
	Epoch  uint64      `json:"epoch"`
	Frames []frameMeta `json:"frames"`
}

// ackResponse is the optional response body carrying the remote's new
// durable position after it applied the pushed frames.
type ackResponse struct {
	Epoch           uint64 `json:"epoch"`
	DurableFrameNum uint64 `json:"durable_frame_num"`
}

// FrameSender implements ports.FrameSender over HTTP multipart uploads.
// When the server acknowledges with its new durable position, the sender
// refreshes the watermark cache so the next cycle skips a pull round-trip.
type FrameSender struct {
	client     ports.HTTPClient
	watermarks *engine.WatermarkCache
	logger     log.Logger
}

// NewFrameSender creates a new HTTP frame sender. watermarks may be nil.
func NewFrameSender(client ports.HTTPClient, watermarks *engine.WatermarkCache, logger log.Logger) *FrameSender {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &FrameSender{client: client, watermarks: watermarks, logger: logger}
}

// Send transmits a frame range to the sync service.
func (s *FrameSender) Send(ctx context.Context, epoch domain.Epoch, frames []domain.Frame, metadata ports.SendMetadata) error {
	if len(frames) == 0 {
		return nil
	}

	man := manifest{Epoch: uint64(epoch), Frames: make([]frameMeta, len(frames))}
	for i, f := range frames {
		man.Frames[i] = frameMeta{Num: uint64(f.Num), Len: len(f.Data), CRC32: f.CRC32}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	manifestJSON, err := json.Marshal(man)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	manifestPart, err := writer.CreateFormField("manifest")
	if err != nil {
		return fmt.Errorf("create manifest field: %w", err)
	}
	if _, err := manifestPart.Write(manifestJSON); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	framesPart, err := writer.CreateFormFile("frames", "frames.bin")
	if err != nil {
		return fmt.Errorf("create frames field: %w", err)
	}
	for _, f := range frames {
		if _, err := framesPart.Write(f.Data); err != nil {
			return fmt.Errorf("write frame %d: %w", f.Num, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart: %w", err)
	}

	url := metadata.ServiceURL + framesEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+metadata.AuthKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Agent-Hostname", metadata.Hostname)
	req.Header.Set("X-Agent-OSArch", metadata.OSArch)
	req.Header.Set("X-Walsync-Store-Id", metadata.StoreID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	if s.watermarks != nil {
		var ack ackResponse
		if err := json.NewDecoder(resp.Body).Decode(&ack); err == nil && ack.DurableFrameNum > 0 {
			s.watermarks.Update(domain.Watermark{
				Epoch:           domain.Epoch(ack.Epoch),
				DurableFrameNum: domain.FrameNum(ack.DurableFrameNum),
			})
		}
	}
	return nil
}

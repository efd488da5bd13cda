// Package client talks to a running booth server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrylevesque/photobooth/internal/auth"
	"github.com/harrylevesque/photobooth/internal/compose"
	"github.com/harrylevesque/photobooth/internal/files"
	"github.com/harrylevesque/photobooth/internal/models"
	"github.com/harrylevesque/photobooth/internal/utils"
)

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) ListOverlays(ctx context.Context) ([]models.Asset, error) {
	var out models.OverlayList
	if err := c.do(ctx, http.MethodGet, "/api/overlays", nil, "", &out); err != nil {
		return nil, err
	}
	return out.Overlays, nil
}

// AddOverlays uploads the files at paths in one request.
func (c *Client) AddOverlays(ctx context.Context, paths []string) ([]models.Asset, error) {
	parts := make([]filePart, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, filePart{field: "overlays", name: filepath.Base(p), data: data})
	}
	body, contentType, err := encodeMultipart(parts, nil)
	if err != nil {
		return nil, err
	}
	var out models.UploadResult
	if err := c.do(ctx, http.MethodPost, "/api/overlays", body, contentType, &out); err != nil {
		return nil, err
	}
	return out.Uploaded, nil
}

func (c *Client) RemoveOverlay(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/overlays/"+url.PathEscape(name), nil, "", nil)
}

// Overlay downloads and decodes an overlay, so a Client can back a
// compose.Composer.
func (c *Client) Overlay(ctx context.Context, name string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+files.OverlayLayout.Address(name), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	img, _, err := compose.Decode(data)
	return img, err
}

// SubmitPhoto uploads a finished PNG.
func (c *Client) SubmitPhoto(ctx context.Context, png []byte) (models.PhotoResult, error) {
	body, contentType, err := encodeMultipart([]filePart{{field: "photo", name: "photo.png", data: png}}, nil)
	if err != nil {
		return models.PhotoResult{}, err
	}
	var out models.PhotoResult
	err = c.do(ctx, http.MethodPost, "/api/photo", body, contentType, &out)
	return out, err
}

// ComposeRemote sends a raw still and lets the server composite it.
func (c *Client) ComposeRemote(ctx context.Context, frame []byte, overlay string, mirror bool) (models.PhotoResult, error) {
	body, contentType, err := encodeMultipart(
		[]filePart{{field: "frame", name: "frame.png", data: frame}},
		map[string]string{"overlay": overlay, "mirror": fmt.Sprint(mirror)},
	)
	if err != nil {
		return models.PhotoResult{}, err
	}
	var out models.PhotoResult
	err = c.do(ctx, http.MethodPost, "/api/compose", body, contentType, &out)
	return out, err
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, "", nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set(auth.HeaderName, c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeError turns an error response into *utils.HTTPError.
func decodeError(resp *http.Response) error {
	var body models.ErrorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
		if body.Error == "" {
			body.Error = resp.Status
		}
	}
	return utils.New(resp.StatusCode, body.Error)
}

type filePart struct {
	field, name string
	data        []byte
}

func encodeMultipart(parts []filePart, values map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		w, err := mw.CreateFormFile(p.field, p.name)
		if err != nil {
			return nil, "", err
		}
		if _, err := w.Write(p.data); err != nil {
			return nil, "", err
		}
	}
	for k, v := range values {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kozaktomas/face-swap/internal/database"
	"github.com/rs/zerolog"
)

const (
	defaultEngineURL = "http://localhost:8765"
	maxErrorBody     = 512
)

// HTTPClient talks to the face2face sidecar over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	store   database.FaceStore // optional durable face storage
	logger  zerolog.Logger

	mu    sync.RWMutex
	faces map[string]registeredFace // embeddings returned by the sidecar in this process
}

type registeredFace struct {
	Embedding []float32
	Model     string
}

// NewHTTPClient creates a sidecar client. store may be nil, in which case
// persisted faces live only in the sidecar's own storage.
func NewHTTPClient(baseURL string, store database.FaceStore, logger zerolog.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = defaultEngineURL
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
		store:   store,
		logger:  logger.With().Str("component", "engine").Logger(),
		faces:   make(map[string]registeredFace),
	}
}

// filePart is one file in a multipart request.
type filePart struct {
	field    string
	filename string
	open     func() (io.ReadCloser, error)
}

func pathPart(field, path string) filePart {
	return filePart{
		field:    field,
		filename: filepath.Base(path),
		open:     func() (io.ReadCloser, error) { return os.Open(path) }, //nolint:gosec // staged workspace path
	}
}

func bytesPart(field, filename string, data []byte) filePart {
	return filePart{
		field:    field,
		filename: filename,
		open:     func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// postMultipart streams fields and files to endpoint and returns the response
// on 200 OK. The caller must close the response body.
func (c *HTTPClient) postMultipart(ctx context.Context, endpoint string, fields map[string]string, files []filePart) (*http.Response, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeMultipart(writer, fields, files))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return resp, nil
}

func writeMultipart(writer *multipart.Writer, fields map[string]string, files []filePart) error {
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		if err != nil {
			return fmt.Errorf("failed to create form file: %w", err)
		}
		rc, err := f.open()
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", f.filename, err)
		}
		_, err = io.Copy(part, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", f.filename, err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return nil
}

// errorResponse is the JSON error body returned by the sidecar.
type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Detail    string `json:"detail"`
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && (er.ErrorCode != "" || er.Detail != "") {
		apiErr.Code = er.ErrorCode
		apiErr.Message = er.Detail
	}
	if apiErr.Code == "" && resp.StatusCode == http.StatusNotFound {
		apiErr.Code = "unknown_face"
	}
	return apiErr
}

// SwapImageToImage implements Client.
func (c *HTTPClient) SwapImageToImage(ctx context.Context, sourcePath, targetPath, enhanceModel string) (*RawImage, error) {
	fields := map[string]string{}
	if enhanceModel != "" {
		fields["enhance_face_model"] = enhanceModel
	}

	resp, err := c.postMultipart(ctx, "/swap/image", fields, []filePart{
		pathPart("source", sourcePath),
		pathPart("target", targetPath),
	})
	if err != nil {
		return nil, fmt.Errorf("swap image: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	img, err := decodeImageResponse(resp.Header, body)
	if err != nil {
		return nil, fmt.Errorf("swap image: %w", err)
	}
	return img, nil
}

// decodeImageResponse accepts either an encoded image or raw RGB24 bytes
// described by X-Image-Width / X-Image-Height.
func decodeImageResponse(h http.Header, body []byte) (*RawImage, error) {
	if strings.HasPrefix(h.Get("Content-Type"), "image/") {
		return DecodeRawImage(body)
	}

	width, errW := strconv.Atoi(h.Get("X-Image-Width"))
	height, errH := strconv.Atoi(h.Get("X-Image-Height"))
	if errW != nil || errH != nil {
		return nil, fmt.Errorf("%w: raw response without image dimensions", ErrUndecodable)
	}
	return NewRawImage(width, height, body)
}

// faceResponse is the body returned by POST /faces.
type faceResponse struct {
	Label     string    `json:"label"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
	Dim       int       `json:"dim"`
}

// RegisterFace implements Client.
func (c *HTTPClient) RegisterFace(ctx context.Context, label string, img *RawImage, persist bool) error {
	if label == "" {
		return errors.New("face label is required")
	}

	var buf bytes.Buffer
	if err := img.EncodePNG(&buf); err != nil {
		return fmt.Errorf("register face: %w", err)
	}

	resp, err := c.postMultipart(ctx, "/faces", map[string]string{
		"label": label,
		"save":  strconv.FormatBool(persist),
	}, []filePart{bytesPart("image", label+".png", buf.Bytes())})
	if err != nil {
		return fmt.Errorf("register face %s: %w", label, err)
	}
	defer resp.Body.Close()

	var fr faceResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	c.mu.Lock()
	c.faces[label] = registeredFace{Embedding: fr.Embedding, Model: fr.Model}
	c.mu.Unlock()

	if persist && c.store != nil && len(fr.Embedding) > 0 {
		err := c.store.SaveFace(ctx, database.StoredFace{
			Label:     label,
			Embedding: fr.Embedding,
			Model:     fr.Model,
			Dim:       len(fr.Embedding),
		})
		if err != nil {
			return fmt.Errorf("persist face %s: %w", label, err)
		}
	}

	c.logger.Debug().Str("label", label).Int("dim", len(fr.Embedding)).Bool("persist", persist).Msg("face registered")
	return nil
}

// restoreRequest is the body of PUT /faces/{label}.
type restoreRequest struct {
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model,omitempty"`
}

// restoreFace pushes a known embedding back to the sidecar, which loses its
// registry on restart. Returns false when no embedding is known for label.
func (c *HTTPClient) restoreFace(ctx context.Context, label string) (bool, error) {
	c.mu.RLock()
	face, ok := c.faces[label]
	c.mu.RUnlock()

	if !ok && c.store != nil {
		stored, err := c.store.GetFace(ctx, label)
		if err != nil {
			return false, fmt.Errorf("loading face %s: %w", label, err)
		}
		if stored != nil {
			face = registeredFace{Embedding: stored.Embedding, Model: stored.Model}
			ok = true
		}
	}
	if !ok || len(face.Embedding) == 0 {
		return false, nil
	}

	body, err := json.Marshal(restoreRequest{Embedding: face.Embedding, Model: face.Model})
	if err != nil {
		return false, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/faces/"+url.PathEscape(label), bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return false, readAPIError(resp)
	}

	c.logger.Info().Str("label", label).Msg("restored face embedding to engine")
	return true, nil
}

// SwapVideo implements Client. The swapped video is written next to the input.
func (c *HTTPClient) SwapVideo(ctx context.Context, label string, video VideoRef, enhanceModel string) (VideoRef, error) {
	out, err := c.swapVideo(ctx, label, video, enhanceModel)
	if err == nil || !errors.Is(err, ErrUnknownFace) {
		return out, err
	}

	restored, rerr := c.restoreFace(ctx, label)
	if rerr != nil {
		return VideoRef{}, fmt.Errorf("%w (restore failed: %v)", err, rerr)
	}
	if !restored {
		return VideoRef{}, err
	}
	return c.swapVideo(ctx, label, video, enhanceModel)
}

func (c *HTTPClient) swapVideo(ctx context.Context, label string, video VideoRef, enhanceModel string) (VideoRef, error) {
	fields := map[string]string{"faces": label}
	if enhanceModel != "" {
		fields["enhance_face_model"] = enhanceModel
	}

	part := pathPart("video", video.Path)
	if video.Name != "" {
		part.filename = filepath.Base(video.Name)
	}

	resp, err := c.postMultipart(ctx, "/swap/video", fields, []filePart{part})
	if err != nil {
		return VideoRef{}, fmt.Errorf("swap video %s: %w", video.Name, err)
	}
	defer resp.Body.Close()

	out, err := os.CreateTemp(filepath.Dir(video.Path), video.Stem()+"-swapped-*.mp4")
	if err != nil {
		return VideoRef{}, fmt.Errorf("creating output file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(out.Name())
		return VideoRef{}, fmt.Errorf("receiving swapped video: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return VideoRef{}, fmt.Errorf("closing output file: %w", err)
	}

	return VideoRef{Name: video.Name, Path: out.Name()}, nil
}

// Ping checks that the sidecar answers its health endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)

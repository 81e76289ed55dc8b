// Package uploadclient — HTTP-клиент протокола загрузки частями.
package uploadclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sir_venger/chunkload/pkg/uploadproto"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultFinalizeTimeout = 5 * time.Minute
)

// Client ходит в API загрузки. Реализует transfer.API.
// Таймауты накладываются через контекст запроса, переданный http.Client не меняется.
type Client struct {
	baseURL         string
	c               *http.Client
	timeout         time.Duration
	finalizeTimeout time.Duration
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет http.Client (например, в тестах).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.c = hc }
}

// WithTimeout задаёт таймаут одного запроса. Таймаут касается только одной попытки.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithFinalizeTimeout задаёт отдельный таймаут сборки: сервер склеивает весь файл
// внутри одного запроса.
func WithFinalizeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.finalizeTimeout = d
		}
	}
}

// New создаёт клиента для сервера baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		c:               &http.Client{},
		timeout:         defaultTimeout,
		finalizeTimeout: defaultFinalizeTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OpenSession открывает сессию и возвращает её идентификатор.
func (c *Client) OpenSession(ctx context.Context, filename string, size int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out uploadproto.InitResponse
	err := c.doJSON(ctx, http.MethodPost, c.baseURL+uploadproto.InitPath,
		uploadproto.InitRequest{Filename: filename, Size: size}, &out)
	if err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("init: empty session id in response")
	}
	return out.SessionID, nil
}

// UploadChunk загружает одну часть вместе с её SHA-256.
func (c *Client) UploadChunk(ctx context.Context, sessionID string, index, total int, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := fmt.Sprintf(uploadproto.ChunkPathFormat, c.baseURL, url.PathEscape(sessionID), index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(data))
	if err != nil {
		return err
	}

	sum := sha256.Sum256(data)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(uploadproto.HeaderTotalChunks, strconv.Itoa(total))
	req.Header.Set(uploadproto.HeaderChecksum, hex.EncodeToString(sum[:]))

	resp, err := c.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Finalize просит сервер собрать файл. totalChunks <= 0 не передаётся.
func (c *Client) Finalize(ctx context.Context, sessionID string, totalChunks int) (uploadproto.Preview, error) {
	req := uploadproto.FinalizeRequest{SessionID: sessionID}
	if totalChunks > 0 {
		req.TotalChunks = &totalChunks
	}

	ctx, cancel := context.WithTimeout(ctx, c.finalizeTimeout)
	defer cancel()

	var out uploadproto.FinalizeResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+uploadproto.FinalizePath, req, &out); err != nil {
		return uploadproto.Preview{}, err
	}
	return out.Preview, nil
}

// Preview возвращает превью уже собранного файла.
func (c *Client) Preview(ctx context.Context, sessionID string) (uploadproto.Preview, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + uploadproto.FinalizePath + "?sessionId=" + url.QueryEscape(sessionID)

	var out uploadproto.FinalizeResponse
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &out); err != nil {
		return uploadproto.Preview{}, err
	}
	return out.Preview, nil
}

// Sessions возвращает листинг сессий от самых свежих.
func (c *Client) Sessions(ctx context.Context) ([]uploadproto.SessionInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out uploadproto.SessionsResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+uploadproto.SessionsPath, nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *Client) doJSON(ctx context.Context, method, u string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, u, err)
	}
	return nil
}

// decodeError превращает неуспешный ответ в *uploadproto.StatusError.
// Тело, которое не удалось разобрать как JSON, попадает в текст ошибки как есть.
func decodeError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	se := &uploadproto.StatusError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(b, &se.ErrorResponse); err != nil || se.ErrorResponse.Error == "" {
		se.ErrorResponse.Error = strings.TrimSpace(string(b))
		if se.ErrorResponse.Error == "" {
			se.ErrorResponse.Error = resp.Status
		}
	}
	return se
}

package api

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
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/kutluhann/decentralized-file-sharing-system/dht"
	"github.com/kutluhann/decentralized-file-sharing-system/filesystem"
	"github.com/kutluhann/decentralized-file-sharing-system/id_tools"
	"github.com/kutluhann/decentralized-file-sharing-system/storage"
)

// StatusError is a non-2xx answer from a node.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// Client talks to nodes over HTTP. Peer calls satisfy dht.PeerClient; the
// rest back the command line tool.
type Client struct {
	http   *http.Client
	logger zerolog.Logger
}

var _ dht.PeerClient = (*Client)(nil)

func NewClient(timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "client").Logger(),
	}
}

func baseURL(addr string) string {
	return "http://" + addr
}

func newRequest(ctx context.Context, method, target, contentType string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(RequestIDHeader, uuid.New().String())
	return req, nil
}

func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return &StatusError{Code: resp.StatusCode, Message: payload.Error}
	}
	return &StatusError{Code: resp.StatusCode, Message: string(bytes.TrimSpace(body))}
}

// rpc posts a msgpack request to a peer route and decodes the reply into
// out. Every failure comes back wrapped in dht.ErrPeerUnreachable.
func (c *Client) rpc(ctx context.Context, addr, route string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := msgpack.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", route, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := newRequest(ctx, http.MethodPost, baseURL(addr)+route, msgpackContentType, body)
	if err != nil {
		return fmt.Errorf("%w: %s%s: %w", dht.ErrPeerUnreachable, addr, route, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s%s: %w", dht.ErrPeerUnreachable, addr, route, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s%s: %w", dht.ErrPeerUnreachable, addr, route, readStatusError(resp))
	}
	if err := msgpack.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s%s: decode: %w", dht.ErrPeerUnreachable, addr, route, err)
	}

	c.logger.Trace().Str("peer", addr).Str("route", route).Str("request_id", req.Header.Get(RequestIDHeader)).Msg("rpc")
	return nil
}

func (c *Client) AddNode(ctx context.Context, addr string, self dht.PeerRecord) (bool, error) {
	var resp dht.AddNodeResponse
	req := dht.AddNodeRequest{ID: self.ID.String(), Host: self.Host, Port: self.Port}
	if err := c.rpc(ctx, addr, "/rpc/add_node", req, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

func (c *Client) GetTopLevelFingerprint(ctx context.Context, addr string) (filesystem.Fingerprint, error) {
	var resp dht.FingerprintResponse
	if err := c.rpc(ctx, addr, "/rpc/fingerprint", nil, &resp); err != nil {
		return filesystem.Fingerprint{}, err
	}
	return resp.Fingerprint, nil
}

func (c *Client) GetNamespace(ctx context.Context, addr string) (*filesystem.Tree, error) {
	var resp dht.NamespaceMessage
	if err := c.rpc(ctx, addr, "/rpc/namespace", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Tree == nil {
		return filesystem.NewDirectory(), nil
	}
	return resp.Tree, nil
}

func (c *Client) MergeNamespace(ctx context.Context, addr string, tree *filesystem.Tree) error {
	var resp dht.MergeNamespaceResponse
	if err := c.rpc(ctx, addr, "/rpc/merge_namespace", dht.NamespaceMessage{Tree: tree}, &resp); err != nil {
		return err
	}
	if !resp.Ack {
		return fmt.Errorf("%w: %s did not acknowledge merge", dht.ErrPeerUnreachable, addr)
	}
	return nil
}

// GetChunk reports storage.ErrChunkNotFound when the peer answers but does
// not hold the chunk.
func (c *Client) GetChunk(ctx context.Context, addr string, hash id_tools.PeerID) ([]byte, error) {
	var resp dht.ChunkResponse
	err := c.rpc(ctx, addr, "/rpc/chunk", dht.ChunkRequest{Hash: hash}, &resp)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s on %s", storage.ErrChunkNotFound, hash.Short(), addr)
	}
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ---------------------------------------------------------
// USER API
// ---------------------------------------------------------

func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	req, err := newRequest(ctx, http.MethodGet, target, "", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readStatusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// PutFile uploads content as dir/name on the node at addr.
func (c *Client) PutFile(ctx context.Context, addr, dir, name string, content io.Reader) (*filesystem.FileRecord, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("dir", dir); err != nil {
		return nil, err
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := newRequest(ctx, http.MethodPost, baseURL(addr)+"/files", writer.FormDataContentType(), body)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, readStatusError(resp)
	}
	var record filesystem.FileRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetFile downloads the file at remotePath.
func (c *Client) GetFile(ctx context.Context, addr, remotePath string) ([]byte, error) {
	target := baseURL(addr) + "/file?" + url.Values{"path": {remotePath}}.Encode()
	req, err := newRequest(ctx, http.MethodGet, target, "", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readStatusError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if want := resp.Header.Get(FileHashHeader); want != "" && id_tools.HashBytes(data).String() != want {
		return nil, fmt.Errorf("%s: %w", remotePath, storage.ErrHashMismatch)
	}
	return data, nil
}

func (c *Client) ListFiles(ctx context.Context, addr string) ([]filesystem.FileEntry, error) {
	var files []filesystem.FileEntry
	err := c.getJSON(ctx, baseURL(addr)+"/files", &files)
	return files, err
}

func (c *Client) RoutingTable(ctx context.Context, addr string) (RoutingTableResponse, error) {
	var table RoutingTableResponse
	err := c.getJSON(ctx, baseURL(addr)+"/routing-table", &table)
	return table, err
}

func (c *Client) Status(ctx context.Context, addr string) (dht.Status, error) {
	var status dht.Status
	err := c.getJSON(ctx, baseURL(addr)+"/status", &status)
	return status, err
}

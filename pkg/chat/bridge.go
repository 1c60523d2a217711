package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"chatvault/pkg/domain"
)

// BridgeClient implements Client against a protocol bridge sidecar. The
// bridge owns the actual chat-network session; the harvester talks plain
// JSON over HTTP to it. One bridge process serves one logged-in session.
type BridgeClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewBridgeDialer returns a Dialer that connects sessions through the bridge
// at baseURL. The sessionID is passed on every request so a multi-session
// bridge can route to the right account.
func NewBridgeDialer(baseURL, token string) Dialer {
	return func(ctx context.Context, sessionID int64, workdir string) (Client, error) {
		c := &BridgeClient{
			baseURL:    strings.TrimRight(baseURL, "/") + "/sessions/" + strconv.FormatInt(sessionID, 10),
			token:      token,
			httpClient: &http.Client{Timeout: 5 * time.Minute},
		}
		// Probe the session before handing the client out; a dead session
		// should fail at acquire time, not mid-scan.
		if _, err := c.Dialogs(ctx); err != nil {
			return nil, fmt.Errorf("bridge session %d: %w", sessionID, err)
		}
		return c, nil
	}
}

// Dialogs lists the conversations visible to the session.
func (c *BridgeClient) Dialogs(ctx context.Context) ([]Dialog, error) {
	var out struct {
		Items []Dialog `json:"items"`
	}
	if err := c.getJSON(ctx, "/dialogs", &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// ChatInfo resolves one chat by numeric ID or handle.
func (c *BridgeClient) ChatInfo(ctx context.Context, ref domain.ChatRef) (Dialog, error) {
	var d Dialog
	if err := c.getJSON(ctx, "/chats/"+url.PathEscape(ref.String()), &d); err != nil {
		return Dialog{}, err
	}
	return d, nil
}

// History returns a newest-to-oldest cursor over the chat's messages,
// fetched page by page from the bridge.
func (c *BridgeClient) History(ctx context.Context, chatID int64) Cursor {
	return &bridgeCursor{client: c, chatID: chatID}
}

// Download streams a media attachment into destDir.
func (c *BridgeClient) Download(ctx context.Context, media Media, destDir string) (string, error) {
	payload, err := json.Marshal(map[string]string{"ref": media.Ref})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/download", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("bridge download: %s", readError(resp))
	}

	name := media.FileName
	if name == "" {
		name = downloadFileName(resp.Header.Get("Content-Disposition"))
	}
	if name == "" {
		name = "download"
	}
	dest := filepath.Join(destDir, filepath.Base(name))
	f, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dest)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return "", err
	}
	return dest, nil
}

// SendText posts a message to the chat.
func (c *BridgeClient) SendText(ctx context.Context, ref domain.ChatRef, text string) error {
	payload, err := json.Marshal(map[string]string{"chat": ref.String(), "text": text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("bridge send: %s", readError(resp))
	}
	return nil
}

// Close is a no-op; the bridge owns the network session.
func (c *BridgeClient) Close() error { return nil }

const historyPageSize = 100

type bridgeCursor struct {
	client   *BridgeClient
	chatID   int64
	page     []Message
	pos      int
	offsetID int64
	done     bool
}

func (cur *bridgeCursor) Next(ctx context.Context) (Message, bool, error) {
	if cur.pos >= len(cur.page) {
		if cur.done {
			return Message{}, false, nil
		}
		if err := cur.fetch(ctx); err != nil {
			return Message{}, false, err
		}
		if len(cur.page) == 0 {
			return Message{}, false, nil
		}
	}
	msg := cur.page[cur.pos]
	cur.pos++
	cur.offsetID = msg.ID
	return msg, true, nil
}

func (cur *bridgeCursor) fetch(ctx context.Context) error {
	path := fmt.Sprintf("/chats/%d/history?limit=%d", cur.chatID, historyPageSize)
	if cur.offsetID != 0 {
		path += fmt.Sprintf("&offsetId=%d", cur.offsetID)
	}
	var out struct {
		Items []Message `json:"items"`
	}
	if err := cur.client.getJSON(ctx, path, &out); err != nil {
		return err
	}
	cur.page = out.Items
	cur.pos = 0
	if len(out.Items) < historyPageSize {
		cur.done = true
	}
	return nil
}

func (c *BridgeClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("bridge error: %s", readError(resp))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readError(resp *http.Response) string {
	var errResp struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&errResp)
	if errResp.Error != "" {
		return errResp.Error
	}
	return resp.Status
}

func downloadFileName(contentDisposition string) string {
	if contentDisposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

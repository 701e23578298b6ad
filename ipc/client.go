package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client sends one request per connection to a running daemon.
type Client struct {
	socketPath string
	timeout    time.Duration
}

func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    connDeadline,
	}
}

// Do sends the request and returns the daemon's response. An error
// response from the daemon is returned as a Go error.
func (c *Client) Do(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon (is it running?): %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if resp.Type == ResponseError {
		return nil, fmt.Errorf("daemon error: %s", resp.Message)
	}
	return &resp, nil
}

// Search is a convenience wrapper for search requests.
func (c *Client) Search(query string, limit int) ([]SearchResult, error) {
	resp, err := c.Do(&Request{Type: RequestSearch, Query: query, Limit: limit})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Status fetches the daemon's status block.
func (c *Client) Status() (*Status, error) {
	resp, err := c.Do(&Request{Type: RequestStatus})
	if err != nil {
		return nil, err
	}
	if resp.Status == nil {
		return nil, fmt.Errorf("daemon returned no status")
	}
	return resp.Status, nil
}

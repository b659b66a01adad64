// Package ipc handles inter-process communication between the daemon and clients.
package ipc

import (
	"encoding/json"
	"fmt"
)

// CommandType represents the type of command
type CommandType string

const (
	CmdPlay      CommandType = "play"
	CmdPause     CommandType = "pause"
	CmdPlayPause CommandType = "playPause"
	CmdSkip      CommandType = "skip"
	CmdStop      CommandType = "stop"
	CmdClear     CommandType = "clear"
	CmdEnqueue   CommandType = "enqueue"
	CmdDequeue   CommandType = "dequeue"
	CmdStatus    CommandType = "status"
	CmdLibrary   CommandType = "library"

	CmdGetConfig       CommandType = "getConfig"
	CmdSetLibraryPaths CommandType = "setLibraryPaths"
)

// Request represents a client request
type Request struct {
	Cmd  CommandType     `json:"cmd"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response represents a server response
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// EnqueueRequest is the data for an enqueue command
type EnqueueRequest struct {
	Path string `json:"path"`
}

// DequeueRequest is the data for a dequeue command
type DequeueRequest struct {
	Index int `json:"index"`
}

// TrackInfo describes a song for display
type TrackInfo struct {
	Path     string            `json:"path"`
	Title    string            `json:"title,omitempty"`
	Artist   string            `json:"artist,omitempty"`
	Album    string            `json:"album,omitempty"`
	Duration int64             `json:"duration"` // milliseconds
	Tags     map[string]string `json:"tags,omitempty"`
}

// StatusResponse is the response to a status command
type StatusResponse struct {
	State    string     `json:"state"` // "stopped", "playing", "paused"
	Track    *TrackInfo `json:"track,omitempty"`
	Position int64      `json:"position"` // milliseconds
	Queue    []string   `json:"queue"`
}

// LibraryResponse is the response to a library command
type LibraryResponse struct {
	Tracks []TrackInfo `json:"tracks"`
}

// ConfigResponse is the response to a getConfig command
type ConfigResponse struct {
	ConfigPath   string   `json:"configPath"`
	LibraryPaths []string `json:"libraryPaths"`
	Extensions   []string `json:"extensions"`
	SampleRate   int      `json:"sampleRate"`
	Channels     int      `json:"channels"`
}

// SetLibraryPathsRequest is the data for a setLibraryPaths command. The new
// roots take effect on the next library scan.
type SetLibraryPathsRequest struct {
	Paths []string `json:"paths"`
}

// EncodeRequest encodes a request to JSON
func EncodeRequest(req *Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeRequest decodes a request from JSON
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return &req, nil
}

// EncodeResponse encodes a response to JSON
func EncodeResponse(resp *Response) ([]byte, error) {
	return json.Marshal(resp)
}

// DecodeResponse decodes a response from JSON
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data interface{}) (*Response, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	return &Response{
		Success: true,
		Data:    rawData,
	}, nil
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"quaver/internal/config"
	"quaver/internal/library"
	"quaver/internal/player"
	"quaver/internal/song"
)

// ErrCommandDropped is returned when the player's command channel is full.
var ErrCommandDropped = errors.New("player busy, command dropped")

// Player is the slice of the actor the server talks to.
type Player interface {
	Commands() chan<- player.Command
	Snapshot() *player.Facade
}

// Server handles IPC communication with clients
type Server struct {
	socketPath string
	player     Player
	lib        *library.Cache
	configMgr  *config.Manager
	listener   net.Listener
	mu         sync.Mutex
	clients    map[net.Conn]struct{}
}

// NewServer creates a new IPC server
func NewServer(socketPath string, p Player, lib *library.Cache, configMgr *config.Manager) *Server {
	return &Server{
		socketPath: socketPath,
		player:     p,
		lib:        lib,
		configMgr:  configMgr,
		clients:    make(map[net.Conn]struct{}),
	}
}

// Start listens on the unix socket until ctx is cancelled, then closes all
// client connections and removes the socket file.
func (s *Server) Start(ctx context.Context) error {
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	log.Printf("[IPC] Creating socket at %s", s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	s.listener = listener

	// Socket is user-only; the socket is the sole authentication boundary.
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	log.Printf("[IPC] Server listening, waiting for connections...")

	go s.acceptLoop(ctx)

	<-ctx.Done()

	log.Printf("[IPC] Shutting down server...")

	s.mu.Lock()
	clientCount := len(s.clients)
	for conn := range s.clients {
		conn.Close()
	}
	s.mu.Unlock()

	log.Printf("[IPC] Closed %d client connections", clientCount)

	listener.Close()
	os.RemoveAll(s.socketPath)

	log.Printf("[IPC] Server stopped")

	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Printf("[IPC] Accept error: %v", err)
				continue
			}
		}

		s.mu.Lock()
		s.clients[conn] = struct{}{}
		s.mu.Unlock()

		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	reader := bufio.NewReader(conn)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Newline-delimited JSON, one request per line.
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				log.Printf("[IPC] Read error: %v", err)
			}
			return
		}

		req, err := DecodeRequest(line)
		if err != nil {
			log.Printf("[IPC] Invalid request: %v", err)
			if err := s.sendResponse(conn, NewErrorResponse("invalid request format")); err != nil {
				return
			}
			continue
		}

		if req.Cmd != CmdStatus {
			log.Printf("[IPC] Command: %s", req.Cmd)
		}

		resp := s.handleRequest(req)

		if err := s.sendResponse(conn, resp); err != nil {
			log.Printf("[IPC] Send error: %v", err)
			return
		}
	}
}

func (s *Server) handleRequest(req *Request) *Response {
	switch req.Cmd {
	case CmdPlay:
		return s.send(player.Play{})
	case CmdPause:
		return s.send(player.Pause{})
	case CmdPlayPause:
		return s.send(player.PlayPause{})
	case CmdSkip:
		return s.send(player.Skip{})
	case CmdStop:
		return s.send(player.Stop{})
	case CmdClear:
		return s.send(player.Clear{})
	case CmdEnqueue:
		return s.handleEnqueue(req)
	case CmdDequeue:
		return s.handleDequeue(req)
	case CmdStatus:
		return s.handleStatus()
	case CmdLibrary:
		return s.handleLibrary()
	case CmdGetConfig:
		return s.handleGetConfig()
	case CmdSetLibraryPaths:
		return s.handleSetLibraryPaths(req)
	default:
		return NewErrorResponse(fmt.Sprintf("unknown command: %s", req.Cmd))
	}
}

// send forwards a command to the actor without blocking the connection.
func (s *Server) send(cmd player.Command) *Response {
	select {
	case s.player.Commands() <- cmd:
	case <-time.After(time.Second):
		return NewErrorResponse(ErrCommandDropped.Error())
	}
	resp, err := NewSuccessResponse(nil)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) handleEnqueue(req *Request) *Response {
	var data EnqueueRequest
	if err := decodeData(req, &data); err != nil {
		return NewErrorResponse(err.Error())
	}
	if data.Path == "" {
		return NewErrorResponse("enqueue requires a path")
	}
	if _, err := s.lib.Lookup(data.Path); err != nil {
		return NewErrorResponse(fmt.Sprintf("path not in library: %v", err))
	}
	return s.send(player.Enqueue{Path: data.Path})
}

func (s *Server) handleDequeue(req *Request) *Response {
	var data DequeueRequest
	if err := decodeData(req, &data); err != nil {
		return NewErrorResponse(err.Error())
	}
	if data.Index < 0 {
		return NewErrorResponse("dequeue index must be non-negative")
	}
	return s.send(player.Dequeue{Index: data.Index})
}

func (s *Server) handleStatus() *Response {
	f := s.player.Snapshot()

	status := StatusResponse{
		State: "stopped",
		Queue: f.Queue(),
	}
	if status.Queue == nil {
		status.Queue = []string{}
	}
	if !f.Stopped() {
		status.State = "playing"
		if f.Paused() {
			status.State = "paused"
		}
		info := trackInfo(*f.CurrentSong())
		status.Track = &info
		status.Position = f.PlayingDuration().Milliseconds()
	}

	resp, err := NewSuccessResponse(status)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) handleLibrary() *Response {
	songs := s.lib.Songs()
	tracks := make([]TrackInfo, 0, len(songs))
	for _, sg := range songs {
		tracks = append(tracks, trackInfo(sg))
	}
	resp, err := NewSuccessResponse(LibraryResponse{Tracks: tracks})
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) handleGetConfig() *Response {
	cfg := s.configMgr.Get()
	resp, err := NewSuccessResponse(ConfigResponse{
		ConfigPath:   s.configMgr.GetPath(),
		LibraryPaths: cfg.LibraryPaths,
		Extensions:   cfg.Extensions,
		SampleRate:   cfg.Audio.SampleRate,
		Channels:     cfg.Audio.Channels,
	})
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) handleSetLibraryPaths(req *Request) *Response {
	var data SetLibraryPathsRequest
	if err := decodeData(req, &data); err != nil {
		return NewErrorResponse(err.Error())
	}
	if err := s.configMgr.SetLibraryPaths(data.Paths); err != nil {
		return NewErrorResponse(fmt.Sprintf("failed to save config: %v", err))
	}
	resp, err := NewSuccessResponse(nil)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func trackInfo(sg song.Song) TrackInfo {
	tags := make(map[string]string, len(sg.Standard))
	for k, v := range sg.Standard {
		tags[string(k)] = v
	}
	return TrackInfo{
		Path:     sg.Path,
		Title:    sg.Title(),
		Artist:   sg.Tag(song.KeyArtist),
		Album:    sg.Tag(song.KeyAlbum),
		Duration: sg.Duration.Milliseconds(),
		Tags:     tags,
	}
}

func decodeData(req *Request, v interface{}) error {
	if len(req.Data) == 0 {
		return fmt.Errorf("%s requires data", req.Cmd)
	}
	if err := json.Unmarshal(req.Data, v); err != nil {
		return fmt.Errorf("invalid %s data: %w", req.Cmd, err)
	}
	return nil
}

func (s *Server) sendResponse(conn net.Conn, resp *Response) error {
	data, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = conn.Write(data)
	return err
}

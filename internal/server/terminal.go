package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// terminalResize is sent by the frontend to resize the terminal.
type terminalResize struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

// handleTerminal renders the project into its workspace directory and
// attaches a shell running there to the websocket, so the user can run
// vagrant against the generated file.
func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Terminal.Enabled {
		writeError(w, http.StatusForbidden, "terminal is disabled")
		return
	}

	p, err := s.store.GetProject(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	dir, err := s.store.Workspace(p)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.allowedOriginPatterns(r),
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()

	cmd := exec.Command(s.cfg.Terminal.Shell)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color", "VAGRANTGEN_PROJECT="+p.Name)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		conn.Close(websocket.StatusInternalError, fmt.Sprintf("failed to start shell: %v", err))
		return
	}
	defer ptmx.Close()
	s.log.Info("terminal opened", zap.String("project", p.ID), zap.String("dir", dir))

	pty.Setsize(ptmx, &pty.Winsize{Rows: 24, Cols: 80})

	var wg sync.WaitGroup

	// PTY -> WebSocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, 4096)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				if writeErr := conn.Write(ctx, websocket.MessageBinary, buf[:n]); writeErr != nil {
					break
				}
			}
			if err != nil {
				break
			}
		}
	}()

	// WebSocket -> PTY
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			msgType, data, err := conn.Read(ctx)
			if err != nil {
				break
			}
			if msgType == websocket.MessageText {
				var resize terminalResize
				if json.Unmarshal(data, &resize) == nil && resize.Type == "resize" {
					pty.Setsize(ptmx, &pty.Winsize{
						Rows: uint16(resize.Rows),
						Cols: uint16(resize.Cols),
					})
					continue
				}
			}
			if _, err := ptmx.Write(data); err != nil {
				break
			}
		}
		ptmx.Write([]byte{4}) // Ctrl-D
	}()

	cmd.Wait()
	// Unblocks the reader goroutine
	ptmx.Close()

	conn.Close(websocket.StatusNormalClosure, "shell exited")
	wg.Wait()
	s.log.Info("terminal closed", zap.String("project", p.ID))
}

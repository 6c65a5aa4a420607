/*
Copyright 2020 The MayaData Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package daemon implements hyraidd's request loop (spec.md §6): a Unix
// stream socket carrying fixed-size, semicolon-delimited frames, the same
// every-request-gets-a-full-response shape the teacher's cmd/main.go used
// for its HTTP sync-hook, adapted to a local socket instead of HTTP since
// hyraidd has no network-facing API surface (spec.md §1's non-goals).
package daemon

import (
	"context"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"hyraid/internal/hyraiderr"
	"hyraid/internal/pool"
)

// DefaultSocketPath is where hyraidd listens.
const DefaultSocketPath = "/tmp/hyraid.sock"

// frameSize is the fixed request/reply length: large enough for a create
// request naming a double-digit number of disks, small enough to read in
// one syscall.
const frameSize = 1024

// Server serves HyRAID pool operations over a Unix stream socket.
type Server struct {
	Controller *pool.Controller
	listener   net.Listener
}

// Listen binds the Unix socket at path, removing any stale socket file left
// behind by a previous, uncleanly-terminated daemon.
func Listen(path string) (*Server, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(hyraiderr.ErrEngineError, "remove stale socket %q: %s", path, err)
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, errors.Wrapf(hyraiderr.ErrEngineError, "listen on %q: %s", path, err)
	}
	return &Server{listener: l}, nil
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return errors.Wrapf(hyraiderr.ErrEngineError, "accept: %s", err)
			}
		}
		// One request at a time: the Controller is single-threaded.
		s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	buf := make([]byte, frameSize)
	n, err := conn.Read(buf)
	if err != nil {
		glog.Errorf("hyraidd: read request: %s", err)
		return
	}
	if n == frameSize && !strings.ContainsRune(string(buf), 0) {
		s.respond(conn, reply("error", string(hyraiderr.BadInput), "request too large"))
		return
	}
	req := strings.TrimRight(string(buf[:n]), "\x00")
	resp := s.dispatch(ctx, req)
	s.respond(conn, resp)
}

// dispatch parses a semicolon-delimited request (operation;array-name;extra)
// and runs it against the Controller, returning a semicolon-delimited
// reply ("ok;...data..." or "error;kind;message").
func (s *Server) dispatch(ctx context.Context, req string) string {
	fields := strings.Split(req, ";")
	if len(fields) < 2 {
		return reply("error", string(hyraiderr.BadInput), "malformed request")
	}
	op, name := fields[0], fields[1]

	switch op {
	case "create":
		if len(fields) < 4 {
			return reply("error", string(hyraiderr.BadInput), "create requires a raid level and disk list")
		}
		level, err := strconv.Atoi(fields[2])
		if err != nil {
			return reply("error", string(hyraiderr.BadInput), "bad raid level")
		}
		disks := splitDisks(fields[3])
		lvPath, err := s.Controller.Create(ctx, name, disks, level)
		if err != nil {
			return replyErr(err)
		}
		return reply("ok", lvPath)
	case "add":
		disks := splitDisks(lastField(fields))
		if err := s.Controller.Add(ctx, name, disks); err != nil {
			return replyErr(err)
		}
		return reply("ok")
	case "fail":
		disks := splitDisks(lastField(fields))
		if err := s.Controller.Fail(ctx, name, disks); err != nil {
			return replyErr(err)
		}
		return reply("ok")
	case "remove":
		disks := splitDisks(lastField(fields))
		if err := s.Controller.Remove(ctx, name, disks); err != nil {
			return replyErr(err)
		}
		return reply("ok")
	default:
		return reply("error", string(hyraiderr.BadInput), "unknown operation "+op)
	}
}

func splitDisks(field string) []string {
	if field == "" {
		return nil
	}
	return strings.Split(field, ",")
}

func lastField(fields []string) string {
	if len(fields) < 3 {
		return ""
	}
	return fields[2]
}

func reply(parts ...string) string {
	return strings.Join(parts, ";")
}

func replyErr(err error) string {
	kind := hyraiderr.KindOf(err)
	if kind == "" {
		kind = hyraiderr.EngineError
	}
	return reply("error", string(kind), err.Error())
}

// respond writes reply padded with NUL bytes to exactly frameSize, or an
// error;bad-input reply if reply itself doesn't fit -- the request-too-large
// case is handled by the caller rejecting oversized reads before dispatch
// runs, this only guards the outbound frame.
func (s *Server) respond(conn net.Conn, reply string) {
	out := make([]byte, frameSize)
	if len(reply) > frameSize {
		reply = "error;" + string(hyraiderr.BadInput) + ";reply too large for frame"
	}
	copy(out, reply)
	if _, err := conn.Write(out); err != nil {
		glog.Errorf("hyraidd: write reply: %s", err)
	}
}

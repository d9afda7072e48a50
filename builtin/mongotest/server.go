// Package mongotest runs a minimal mongod for tests. It speaks the legacy
// OP_QUERY/OP_REPLY wire protocol mgo uses, answers the connection
// handshake itself and hands every other command to a Handler.
package mongotest

import (
	"encoding/binary"
	"io"
	"net"
	"strings"
	"sync"

	"gopkg.in/mgo.v2/bson"
)

const (
	opReply = 1
	opQuery = 2004

	headerLen      = 16
	replyPrefixLen = 36
	maxMessageLen  = 48 * 1024 * 1024
)

// Handler answers a command. A nil reply closes the connection without
// answering.
type Handler func(command string, doc bson.D) bson.D

type Server struct {
	listener net.Listener
	handler  Handler

	mu        sync.Mutex
	commands  []string
	conns     map[net.Conn]struct{}
	requestID int32
	closed    bool
	wg        sync.WaitGroup
}

// NewServer listens on a random loopback port. A nil handler answers every
// command with {ok: 1}.
func NewServer(handler Handler) (*Server, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{
		listener: listener,
		handler:  handler,
		conns:    make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Commands returns the names of the commands handed to the Handler, in the
// order they arrived.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *Server) Close() {
	s.listener.Close()
	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Reply builds a successful command reply carrying fields ahead of ok.
func Reply(fields ...bson.DocElem) bson.D {
	return append(bson.D(fields), bson.DocElem{Name: "ok", Value: 1})
}

// Refuse builds the reply of a command the server rejected.
func Refuse(code int, codeName, errmsg string) bson.D {
	return bson.D{
		{Name: "ok", Value: 0},
		{Name: "errmsg", Value: errmsg},
		{Name: "code", Value: code},
		{Name: "codeName", Value: codeName},
	}
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
				conn.Close()
			}()
			s.serveConn(conn)
		}()
	}
}

func (s *Server) serveConn(conn net.Conn) {
	for {
		var header [headerLen]byte
		if _, err := io.ReadFull(conn, header[:]); err != nil {
			return
		}
		length := int(binary.LittleEndian.Uint32(header[0:]))
		requestID := int32(binary.LittleEndian.Uint32(header[4:]))
		opCode := binary.LittleEndian.Uint32(header[12:])
		if length < headerLen || length > maxMessageLen {
			return
		}
		body := make([]byte, length-headerLen)
		if _, err := io.ReadFull(conn, body); err != nil {
			return
		}
		if opCode != opQuery {
			continue
		}

		doc, ok := parseQuery(body)
		if !ok || len(doc) == 0 {
			return
		}
		reply := s.answer(doc)
		if reply == nil {
			return
		}
		if err := s.writeReply(conn, requestID, reply); err != nil {
			return
		}
	}
}

func (s *Server) answer(doc bson.D) bson.D {
	name := doc[0].Name
	switch strings.ToLower(name) {
	case "ismaster":
		return Reply(
			bson.DocElem{Name: "ismaster", Value: true},
			bson.DocElem{Name: "maxWireVersion", Value: 2},
			bson.DocElem{Name: "minWireVersion", Value: 0},
		)
	case "ping", "getnonce":
		return Reply()
	}

	s.mu.Lock()
	s.commands = append(s.commands, name)
	s.mu.Unlock()
	if s.handler == nil {
		return Reply()
	}
	return s.handler(name, doc)
}

// parseQuery returns the query document of an OP_QUERY body, unwrapped
// from $query when the client sent read preferences along.
func parseQuery(body []byte) (bson.D, bool) {
	// flags, then the collection name as a cstring
	if len(body) < 4 {
		return nil, false
	}
	end := 4
	for end < len(body) && body[end] != 0 {
		end++
	}
	// skip the terminator, numberToSkip and numberToReturn
	start := end + 1 + 8
	if start+4 > len(body) {
		return nil, false
	}
	docLen := int(binary.LittleEndian.Uint32(body[start:]))
	if docLen < 5 || start+docLen > len(body) {
		return nil, false
	}

	var doc bson.D
	if err := bson.Unmarshal(body[start:start+docLen], &doc); err != nil {
		return nil, false
	}
	if len(doc) > 0 && doc[0].Name == "$query" {
		if inner, ok := doc[0].Value.(bson.D); ok {
			doc = inner
		}
	}
	return doc, true
}

func (s *Server) writeReply(conn net.Conn, responseTo int32, reply bson.D) error {
	data, err := bson.Marshal(reply)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.requestID++
	requestID := s.requestID
	s.mu.Unlock()

	msg := make([]byte, replyPrefixLen, replyPrefixLen+len(data))
	binary.LittleEndian.PutUint32(msg[0:], uint32(replyPrefixLen+len(data)))
	binary.LittleEndian.PutUint32(msg[4:], uint32(requestID))
	binary.LittleEndian.PutUint32(msg[8:], uint32(responseTo))
	binary.LittleEndian.PutUint32(msg[12:], opReply)
	// response flags, cursor id and starting offset stay zero
	binary.LittleEndian.PutUint32(msg[32:], 1)
	msg = append(msg, data...)

	_, err = conn.Write(msg)
	return err
}

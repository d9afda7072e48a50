package mongo

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

var (
	// ErrAdministrationCallFailed covers any failure to run an admin
	// command: network, authentication or a malformed reply.
	ErrAdministrationCallFailed = errors.New("administration call failed")

	ErrInvalidConfig = errors.New("invalid replica set config")
)

// Admin is the part of the cluster administration interface the bootstrap
// needs.
type Admin interface {
	ReplicationStatus() (*Status, error)
	Initiate(cfg *ReplicaSetConfig) (*InitiateResult, error)
}

// CommandError is returned when an admin command could not be run.
// errors.Is(err, ErrAdministrationCallFailed) holds for every CommandError.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrAdministrationCallFailed, e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

func (e *CommandError) Is(target error) bool {
	return target == ErrAdministrationCallFailed
}

// AdminFailure wraps err as a failure of the named command, unless it
// already is one.
func AdminFailure(command string, err error) error {
	if err == nil || errors.Is(err, ErrAdministrationCallFailed) {
		return err
	}
	return &CommandError{Command: command, Err: err}
}

type DialOptions struct {
	Addr     string
	Username string
	Password string
	// Source is the database holding the user's credentials.
	Source  string
	Timeout time.Duration
}

// Session runs admin commands over an mgo session.
type Session struct {
	session *mgo.Session
}

// Dial connects directly to a single node. The node may not belong to a
// replica set yet, so the session must not wait for a primary.
func Dial(opts DialOptions) (*Session, error) {
	info := &mgo.DialInfo{
		Addrs:    []string{opts.Addr},
		Direct:   true,
		FailFast: true,
		Timeout:  opts.Timeout,
		Username: opts.Username,
		Password: opts.Password,
		Source:   opts.Source,
	}
	session, err := mgo.DialWithInfo(info)
	if err != nil {
		return nil, AdminFailure("dial "+opts.Addr, err)
	}
	session.SetMode(mgo.Monotonic, true)
	return NewSession(session), nil
}

func NewSession(session *mgo.Session) *Session {
	return &Session{session: session}
}

func (s *Session) Close() {
	s.session.Close()
}

// Server error codes the bootstrap tells apart.
const (
	codeUnauthorized         = 13
	codeAuthenticationFailed = 18
	codeNoReplicationEnabled = 76
	codeNotYetInitialized    = 94
)

// notRunning reports whether a refused replSetGetStatus means the node has
// no replica set config yet. Any other refusal is a failed call.
func notRunning(qerr *mgo.QueryError) bool {
	return qerr.Code == codeNotYetInitialized || qerr.Code == codeNoReplicationEnabled
}

func authFailure(qerr *mgo.QueryError) bool {
	return qerr.Code == codeUnauthorized || qerr.Code == codeAuthenticationFailed
}

func (s *Session) ReplicationStatus() (*Status, error) {
	const command = "replSetGetStatus"

	var raw bson.Raw
	err := s.session.DB("admin").Run(bson.M{command: 1}, &raw)
	if qerr, ok := err.(*mgo.QueryError); ok {
		if !notRunning(qerr) {
			return nil, AdminFailure(command, qerr)
		}
		status, err := statusFromQueryError(qerr, raw)
		if err != nil {
			return nil, AdminFailure(command, fmt.Errorf("malformed reply: %w", err))
		}
		return status, nil
	}
	if err != nil {
		return nil, AdminFailure(command, err)
	}
	status, err := decodeStatus(raw)
	if err != nil {
		return nil, AdminFailure(command, fmt.Errorf("malformed reply: %w", err))
	}
	return status, nil
}

// Initiate submits cfg. A refusal such as an already initialized set is
// the server's answer and comes back as a result; failed authorization is
// an error.
func (s *Session) Initiate(cfg *ReplicaSetConfig) (*InitiateResult, error) {
	const command = "replSetInitiate"

	var raw bson.Raw
	err := s.session.DB("admin").Run(bson.M{command: cfg}, &raw)
	if qerr, ok := err.(*mgo.QueryError); ok {
		if authFailure(qerr) {
			return nil, AdminFailure(command, qerr)
		}
		result, err := initiateResultFromQueryError(qerr, raw)
		if err != nil {
			return nil, AdminFailure(command, fmt.Errorf("malformed reply: %w", err))
		}
		return result, nil
	}
	if err != nil {
		return nil, AdminFailure(command, err)
	}
	result, err := decodeInitiateResult(raw)
	if err != nil {
		return nil, AdminFailure(command, fmt.Errorf("malformed reply: %w", err))
	}
	return result, nil
}

package mongotest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

func dial(t *testing.T, s *Server) *mgo.Session {
	t.Helper()
	session, err := mgo.DialWithInfo(&mgo.DialInfo{
		Addrs:    []string{s.Addr()},
		Direct:   true,
		FailFast: true,
		Timeout:  2 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(session.Close)
	return session
}

func TestServerAnswersCommands(t *testing.T) {
	s, err := NewServer(func(command string, doc bson.D) bson.D {
		return Reply(bson.DocElem{Name: "echo", Value: command})
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	session := dial(t, s)
	result := bson.M{}
	require.NoError(t, session.DB("admin").Run(bson.M{"whatsmyuri": 1}, &result))
	require.Equal(t, "whatsmyuri", result["echo"])

	// The handshake is answered without reaching the handler.
	require.Equal(t, []string{"whatsmyuri"}, s.Commands())
}

func TestServerRefuse(t *testing.T) {
	s, err := NewServer(func(string, bson.D) bson.D {
		return Refuse(13, "Unauthorized", "command requires authentication")
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	err = dial(t, s).DB("admin").Run(bson.M{"replSetGetStatus": 1}, nil)
	qerr, ok := err.(*mgo.QueryError)
	require.True(t, ok, "got %v", err)
	require.Equal(t, 13, qerr.Code)
}

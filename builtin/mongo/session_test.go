package mongo

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"

	"github.com/memories/mongoctl/builtin/mongotest"
)

func testSession(t *testing.T, handler mongotest.Handler) (*Session, *mongotest.Server) {
	t.Helper()
	srv, err := mongotest.NewServer(handler)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	session, err := Dial(DialOptions{Addr: srv.Addr(), Timeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(session.Close)
	return session, srv
}

func TestSessionReplicationStatus(t *testing.T) {
	session, srv := testSession(t, func(command string, doc bson.D) bson.D {
		return bson.D{
			{Name: "set", Value: "rs0"},
			{Name: "myState", Value: 1},
			{Name: "members", Value: []bson.D{{
				{Name: "_id", Value: 0},
				{Name: "name", Value: "a:27017"},
				{Name: "state", Value: 1},
				{Name: "stateStr", Value: "PRIMARY"},
			}}},
			{Name: "ok", Value: 1},
		}
	})

	status, err := session.ReplicationStatus()
	require.NoError(t, err)
	require.True(t, status.OK())
	require.Equal(t, "rs0", status.Set)
	require.Len(t, status.Members, 1)
	require.Equal(t, StatePrimary, status.Members[0].State)
	require.Equal(t, []string{"replSetGetStatus"}, srv.Commands())

	out, err := json.Marshal(status)
	require.NoError(t, err)
	require.Equal(t, `{"set":"rs0","myState":1,"members":[{"_id":0,"name":"a:27017","state":1,"stateStr":"PRIMARY"}],"ok":1}`, string(out))
}

func TestSessionReplicationStatusNotRunning(t *testing.T) {
	testCases := []struct {
		name     string
		code     int
		codeName string
	}{
		{"not yet initialized", 94, "NotYetInitialized"},
		{"started without replication", 76, "NoReplicationEnabled"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			session, _ := testSession(t, func(string, bson.D) bson.D {
				return append(mongotest.Refuse(tc.code, tc.codeName, "no replset config has been received"),
					bson.DocElem{Name: "operationTime", Value: 5})
			})

			status, err := session.ReplicationStatus()
			require.NoError(t, err)
			require.False(t, status.OK())
			require.Equal(t, tc.code, status.Code)
			require.Equal(t, tc.codeName, status.CodeName)

			out, err := json.Marshal(status)
			require.NoError(t, err)
			require.Contains(t, string(out), `"codeName":"`+tc.codeName+`"`)
			require.Contains(t, string(out), `"operationTime":5`)
		})
	}
}

func TestSessionReplicationStatusRefused(t *testing.T) {
	testCases := []struct {
		name     string
		code     int
		codeName string
	}{
		{"unauthorized", 13, "Unauthorized"},
		{"authentication failed", 18, "AuthenticationFailed"},
		{"other refusal", 2, "BadValue"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			session, _ := testSession(t, func(string, bson.D) bson.D {
				return mongotest.Refuse(tc.code, tc.codeName, "refused")
			})

			status, err := session.ReplicationStatus()
			require.Nil(t, status)
			require.ErrorIs(t, err, ErrAdministrationCallFailed)
			require.Contains(t, err.Error(), "replSetGetStatus")
		})
	}
}

func TestSessionReplicationStatusConnectionLost(t *testing.T) {
	session, _ := testSession(t, func(string, bson.D) bson.D {
		return nil
	})

	_, err := session.ReplicationStatus()
	require.ErrorIs(t, err, ErrAdministrationCallFailed)
}

func TestSessionInitiate(t *testing.T) {
	submitted := make(chan bson.D, 1)
	session, srv := testSession(t, func(command string, doc bson.D) bson.D {
		submitted <- doc
		return mongotest.Reply(bson.DocElem{Name: "operationTime", Value: 7})
	})

	result, err := session.Initiate(DefaultReplicaSet())
	require.NoError(t, err)
	require.True(t, result.OK())
	require.Equal(t, []string{"replSetInitiate"}, srv.Commands())

	doc := <-submitted
	cfg, ok := doc[0].Value.(bson.D)
	require.True(t, ok)
	require.Equal(t, "_id", cfg[0].Name)
	require.Equal(t, ReplicaSetName, cfg[0].Value)

	out, err := json.Marshal(result)
	require.NoError(t, err)
	require.Equal(t, `{"operationTime":7,"ok":1}`, string(out))
}

func TestSessionInitiateRefused(t *testing.T) {
	session, _ := testSession(t, func(string, bson.D) bson.D {
		return mongotest.Refuse(23, "AlreadyInitialized", "already initialized")
	})

	result, err := session.Initiate(DefaultReplicaSet())
	require.NoError(t, err)
	require.False(t, result.OK())
	require.Equal(t, 23, result.Code)
	require.Equal(t, "AlreadyInitialized", result.CodeName)

	out, err := json.Marshal(result)
	require.NoError(t, err)
	require.Equal(t, `{"ok":0,"errmsg":"already initialized","code":23,"codeName":"AlreadyInitialized"}`, string(out))
}

func TestSessionInitiateUnauthorized(t *testing.T) {
	session, _ := testSession(t, func(string, bson.D) bson.D {
		return mongotest.Refuse(13, "Unauthorized", "command replSetInitiate requires authentication")
	})

	result, err := session.Initiate(DefaultReplicaSet())
	require.Nil(t, result)
	require.ErrorIs(t, err, ErrAdministrationCallFailed)
	require.Contains(t, err.Error(), "replSetInitiate")
}

func TestDialUnreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	_, err = Dial(DialOptions{Addr: addr, Timeout: 500 * time.Millisecond})
	require.ErrorIs(t, err, ErrAdministrationCallFailed)
	require.Contains(t, err.Error(), addr)
}

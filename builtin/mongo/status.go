package mongo

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

// MemberState is a replica set member state as reported by replSetGetStatus.
type MemberState int

const (
	StateStartup    MemberState = 0
	StatePrimary    MemberState = 1
	StateSecondary  MemberState = 2
	StateRecovering MemberState = 3
	// 4 is unused by the server.
	StateStartup2 MemberState = 5
	StateUnknown  MemberState = 6
	StateArbiter  MemberState = 7
	StateDown     MemberState = 8
	StateRollback MemberState = 9
	StateRemoved  MemberState = 10
)

var stateNames = map[MemberState]string{
	StateStartup:    "STARTUP",
	StatePrimary:    "PRIMARY",
	StateSecondary:  "SECONDARY",
	StateRecovering: "RECOVERING",
	StateStartup2:   "STARTUP2",
	StateUnknown:    "UNKNOWN",
	StateArbiter:    "ARBITER",
	StateDown:       "DOWN",
	StateRollback:   "ROLLBACK",
	StateRemoved:    "REMOVED",
}

func (s MemberState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATE(%d)", int(s))
}

type StatusMember struct {
	Id            int         `bson:"_id" json:"_id"`
	Name          string      `bson:"name" json:"name"`
	Health        float64     `bson:"health" json:"health"`
	State         MemberState `bson:"state" json:"state"`
	StateStr      string      `bson:"stateStr" json:"stateStr"`
	Uptime        int64       `bson:"uptime" json:"uptime"`
	LastHeartbeat time.Time   `bson:"lastHeartbeat,omitempty" json:"lastHeartbeat,omitempty"`
}

// Status is the reply to replSetGetStatus. An uninitialized server answers
// with Ok 0 and an error message rather than failing the call.
type Status struct {
	Ok       float64         `bson:"ok" json:"ok"`
	Set      string          `bson:"set,omitempty" json:"set,omitempty"`
	Date     time.Time       `bson:"date,omitempty" json:"date,omitempty"`
	MyState  MemberState     `bson:"myState" json:"myState"`
	Members  []*StatusMember `bson:"members,omitempty" json:"members,omitempty"`
	ErrMsg   string          `bson:"errmsg,omitempty" json:"errmsg,omitempty"`
	Code     int             `bson:"code,omitempty" json:"code,omitempty"`
	CodeName string          `bson:"codeName,omitempty" json:"codeName,omitempty"`

	// doc is the full reply in server order, fields the typed view does
	// not know included.
	doc bson.D
}

// OK reports whether the replica set is running.
func (s *Status) OK() bool {
	return s != nil && s.Ok == 1
}

// MarshalJSON emits the full reply document when one was received.
func (s Status) MarshalJSON() ([]byte, error) {
	if s.doc != nil {
		return marshalDoc(s.doc)
	}
	type status Status
	return json.Marshal(status(s))
}

func (s *Status) validate() error {
	switch s.Ok {
	case 0:
	case 1:
		if s.Set == "" {
			return fmt.Errorf("ok reply without a set name")
		}
	default:
		return fmt.Errorf("unexpected ok value %v", s.Ok)
	}
	return nil
}

// InitiateResult is the reply to replSetInitiate.
type InitiateResult struct {
	Ok       float64 `bson:"ok" json:"ok"`
	ErrMsg   string  `bson:"errmsg,omitempty" json:"errmsg,omitempty"`
	Code     int     `bson:"code,omitempty" json:"code,omitempty"`
	CodeName string  `bson:"codeName,omitempty" json:"codeName,omitempty"`

	doc bson.D
}

func (r *InitiateResult) OK() bool {
	return r != nil && r.Ok == 1
}

func (r InitiateResult) MarshalJSON() ([]byte, error) {
	if r.doc != nil {
		return marshalDoc(r.doc)
	}
	type result InitiateResult
	return json.Marshal(result(r))
}

func decodeStatus(raw bson.Raw) (*Status, error) {
	status := &Status{}
	if err := raw.Unmarshal(status); err != nil {
		return nil, err
	}
	doc := bson.D{}
	if err := raw.Unmarshal(&doc); err != nil {
		return nil, err
	}
	status.doc = doc
	if err := status.validate(); err != nil {
		return nil, err
	}
	return status, nil
}

func decodeInitiateResult(raw bson.Raw) (*InitiateResult, error) {
	result := &InitiateResult{}
	if err := raw.Unmarshal(result); err != nil {
		return nil, err
	}
	doc := bson.D{}
	if err := raw.Unmarshal(&doc); err != nil {
		return nil, err
	}
	result.doc = doc
	return result, nil
}

// mgo decodes a command reply before reporting its errmsg as a QueryError,
// so raw normally holds the server's document. errorDoc stands in for it
// when nothing was decoded.
func errorDoc(qerr *mgo.QueryError) bson.D {
	doc := bson.D{
		{Name: "ok", Value: 0},
		{Name: "errmsg", Value: qerr.Message},
	}
	if qerr.Code != 0 {
		doc = append(doc, bson.DocElem{Name: "code", Value: qerr.Code})
	}
	return doc
}

func statusFromQueryError(qerr *mgo.QueryError, raw bson.Raw) (*Status, error) {
	if len(raw.Data) > 0 {
		return decodeStatus(raw)
	}
	return &Status{
		ErrMsg: qerr.Message,
		Code:   qerr.Code,
		doc:    errorDoc(qerr),
	}, nil
}

func initiateResultFromQueryError(qerr *mgo.QueryError, raw bson.Raw) (*InitiateResult, error) {
	if len(raw.Data) > 0 {
		return decodeInitiateResult(raw)
	}
	return &InitiateResult{
		ErrMsg: qerr.Message,
		Code:   qerr.Code,
		doc:    errorDoc(qerr),
	}, nil
}

// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cooperationmock provides a hand-maintained gomock double for
// cooperation.Transport, in the shape mockgen would generate, following
// the teacher's validator/validatorsmock convention of checking in a
// generated-style mock for cross-node collaborator interfaces.
package cooperationmock

import (
	context "context"
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"

	"github.com/luxfi/covered/cooperation"
	"github.com/luxfi/covered/directory"
	"github.com/luxfi/covered/keyspace"
	"github.com/luxfi/covered/victim"
)

var _ cooperation.Transport = (*Transport)(nil)

// Transport is a mock of cooperation.Transport.
type Transport struct {
	ctrl     *gomock.Controller
	recorder *TransportMockRecorder
}

// TransportMockRecorder is the EXPECT() recorder for Transport.
type TransportMockRecorder struct {
	mock *Transport
}

// NewTransport returns a new mock bound to ctrl.
func NewTransport(ctrl *gomock.Controller) *Transport {
	m := &Transport{ctrl: ctrl}
	m.recorder = &TransportMockRecorder{m}
	return m
}

// EXPECT returns the recorder used to set call expectations.
func (m *Transport) EXPECT() *TransportMockRecorder {
	return m.recorder
}

func (m *Transport) RedirectedGet(ctx context.Context, edge keyspace.EdgeIndex, key keyspace.Key) ([]byte, bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "RedirectedGet", ctx, edge, key)
	value, _ := ret[0].([]byte)
	found, _ := ret[1].(bool)
	err, _ := ret[2].(error)
	return value, found, err
}

func (mr *TransportMockRecorder) RedirectedGet(ctx, edge, key interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "RedirectedGet", reflect.TypeOf((*Transport)(nil).RedirectedGet), ctx, edge, key)
}

func (m *Transport) GlobalGet(ctx context.Context, key keyspace.Key) ([]byte, bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GlobalGet", ctx, key)
	value, _ := ret[0].([]byte)
	found, _ := ret[1].(bool)
	err, _ := ret[2].(error)
	return value, found, err
}

func (mr *TransportMockRecorder) GlobalGet(ctx, key interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GlobalGet", reflect.TypeOf((*Transport)(nil).GlobalGet), ctx, key)
}

func (m *Transport) GlobalPut(ctx context.Context, key keyspace.Key, value []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GlobalPut", ctx, key, value)
	err, _ := ret[0].(error)
	return err
}

func (mr *TransportMockRecorder) GlobalPut(ctx, key, value interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GlobalPut", reflect.TypeOf((*Transport)(nil).GlobalPut), ctx, key, value)
}

func (m *Transport) GlobalDel(ctx context.Context, key keyspace.Key) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GlobalDel", ctx, key)
	err, _ := ret[0].(error)
	return err
}

func (mr *TransportMockRecorder) GlobalDel(ctx, key interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GlobalDel", reflect.TypeOf((*Transport)(nil).GlobalDel), ctx, key)
}

func (m *Transport) PlacementNotify(ctx context.Context, edge keyspace.EdgeIndex, key keyspace.Key, value []byte, isValid bool, syncset victim.Syncset) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "PlacementNotify", ctx, edge, key, value, isValid, syncset)
	err, _ := ret[0].(error)
	return err
}

func (mr *TransportMockRecorder) PlacementNotify(ctx, edge, key, value, isValid, syncset interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PlacementNotify", reflect.TypeOf((*Transport)(nil).PlacementNotify), ctx, edge, key, value, isValid, syncset)
}

func (m *Transport) VictimFetch(ctx context.Context, edge keyspace.EdgeIndex, existing []keyspace.Key, requiredSize uint64) ([]keyspace.Key, bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "VictimFetch", ctx, edge, existing, requiredSize)
	additional, _ := ret[0].([]keyspace.Key)
	hasEnough, _ := ret[1].(bool)
	err, _ := ret[2].(error)
	return additional, hasEnough, err
}

func (mr *TransportMockRecorder) VictimFetch(ctx, edge, existing, requiredSize interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "VictimFetch", reflect.TypeOf((*Transport)(nil).VictimFetch), ctx, edge, existing, requiredSize)
}

func (m *Transport) Invalidate(ctx context.Context, key keyspace.Key, edge keyspace.EdgeIndex) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Invalidate", ctx, key, edge)
	err, _ := ret[0].(error)
	return err
}

func (mr *TransportMockRecorder) Invalidate(ctx, key, edge interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Invalidate", reflect.TypeOf((*Transport)(nil).Invalidate), ctx, key, edge)
}

func (m *Transport) MetadataUpdate(ctx context.Context, edge keyspace.EdgeIndex, key keyspace.Key, mode directory.MetadataUpdateMode) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "MetadataUpdate", ctx, edge, key, mode)
	err, _ := ret[0].(error)
	return err
}

func (mr *TransportMockRecorder) MetadataUpdate(ctx, edge, key, mode interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "MetadataUpdate", reflect.TypeOf((*Transport)(nil).MetadataUpdate), ctx, edge, key, mode)
}

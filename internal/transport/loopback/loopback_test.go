package loopback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/srg/gattsrv/internal/gatt"
	"github.com/srg/gattsrv/internal/server"
	"github.com/srg/gattsrv/internal/testutils"
)

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) ServeRead(peer *gatt.Peer, n *gatt.Node, offset int) gatt.Reply {
	args := m.Called(peer, n, offset)
	return args.Get(0).(gatt.Reply)
}

func (m *mockDispatcher) ServeWrite(peer *gatt.Peer, n *gatt.Node, data []byte, offset int, withResponse bool) gatt.Reply {
	args := m.Called(peer, n, data, offset, withResponse)
	return args.Get(0).(gatt.Reply)
}

func (m *mockDispatcher) Subscribed(peer *gatt.Peer, n *gatt.Node)   { m.Called(peer, n) }
func (m *mockDispatcher) Unsubscribed(peer *gatt.Peer, n *gatt.Node) { m.Called(peer, n) }

type LoopbackTestSuite struct {
	suite.Suite
	helper    *testutils.TestHelper
	tree      *gatt.Tree
	dispatch  *mockDispatcher
	transport *Transport
}

func (s *LoopbackTestSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())

	b := gatt.NewBuilder("/com/test")
	b.BeginService("text", "00000001-1E3C-FAD4-74E2-97A033F1BFAA").
		BeginCharacteristic("string", "00000002-1E3C-FAD4-74E2-97A033F1BFAA", "read", "write", "notify").
		EndCharacteristic().
		BeginCharacteristic("command", "00000003-1E3C-FAD4-74E2-97A033F1BFAA", "write-without-response").
		EndCharacteristic().
		BeginCharacteristic("secret", "00000004-1E3C-FAD4-74E2-97A033F1BFAA", "write").
		EndCharacteristic().
		EndService()
	tree, err := b.Build()
	s.Require().NoError(err)

	s.tree = tree
	s.dispatch = &mockDispatcher{}
	s.transport = New(s.helper.Logger, WithQueueSize(2))
	s.Require().NoError(s.transport.Start(context.Background(), server.Advertisement{LocalName: "test"}, tree, s.dispatch))
}

func (s *LoopbackTestSuite) TearDownTest() {
	s.NoError(s.transport.Stop())
	s.dispatch.AssertExpectations(s.T())
}

func (s *LoopbackTestSuite) node(path string) *gatt.Node {
	n, ok := s.tree.Lookup(path)
	s.Require().True(ok)
	return n
}

func (s *LoopbackTestSuite) TestReadForwardsToDispatcher() {
	n := s.node("text/string")
	s.dispatch.On("ServeRead", mock.Anything, n, 0).
		Return(gatt.Reply{Status: gatt.StatusSuccess, Value: []byte("hi")}).Once()

	got, err := s.transport.Connect("11:22").Read("text/string")
	s.Require().NoError(err)
	s.Equal([]byte("hi"), got)
}

func (s *LoopbackTestSuite) TestReadStatusBecomesError() {
	n := s.node("text/string")
	s.dispatch.On("ServeRead", mock.Anything, n, 3).
		Return(gatt.Reply{Status: gatt.StatusInvalidOffset}).Once()

	_, err := s.transport.Connect("11:22").ReadAt("/com/test/text/string", 3)
	var se *StatusError
	s.Require().ErrorAs(err, &se)
	s.Equal(gatt.StatusInvalidOffset, se.Status)
}

func (s *LoopbackTestSuite) TestFlagsAreEnforcedBeforeDispatch() {
	p := s.transport.Connect("11:22")

	_, err := p.Read("text/command")
	var se *StatusError
	s.Require().ErrorAs(err, &se)
	s.Equal(gatt.StatusReadNotPermitted, se.Status)

	err = p.Write("text/command", []byte{1})
	s.Require().ErrorAs(err, &se)
	s.Equal(gatt.StatusWriteNotPermitted, se.Status, "write-without-response does not allow write requests")

	err = p.WriteNoResponse("text/secret", []byte{1})
	s.Require().ErrorAs(err, &se)
	s.Equal(gatt.StatusWriteNotPermitted, se.Status)

	_, err = p.Subscribe("text/secret")
	s.Require().ErrorAs(err, &se)

	_, err = p.Read("text")
	s.ErrorIs(err, ErrUnknownPath, "services are not attributes")

	_, err = p.Read("text/nope")
	s.ErrorIs(err, ErrUnknownPath)
}

func (s *LoopbackTestSuite) TestWriteNoResponseIgnoresStatus() {
	n := s.node("text/command")
	s.dispatch.On("ServeWrite", mock.Anything, n, []byte{7}, 0, false).
		Return(gatt.Reply{Status: gatt.StatusUnlikely}).Once()

	s.NoError(s.transport.Connect("11:22").WriteNoResponse("text/command", []byte{7}))
}

func (s *LoopbackTestSuite) TestSubscribeNotifyUnsubscribe() {
	n := s.node("text/string")
	s.dispatch.On("Subscribed", mock.Anything, n).Once()
	s.dispatch.On("Unsubscribed", mock.Anything, n).Once()

	p := s.transport.Connect("11:22")
	ch, err := p.Subscribe("text/string")
	s.Require().NoError(err)

	// Subscribing twice returns the same stream without a second callback.
	again, err := p.Subscribe("text/string")
	s.Require().NoError(err)
	s.Equal(ch, again)

	s.Equal(1, s.transport.Notify(n, []byte("a")))
	s.Equal(0, s.transport.Notify(s.node("text/secret"), []byte("x")))

	s.Equal([]byte("a"), <-ch)

	// Queue size is two: the oldest of three pending values is dropped.
	s.transport.Notify(n, []byte("1"))
	s.transport.Notify(n, []byte("2"))
	s.transport.Notify(n, []byte("3"))

	stats := p.Subscriptions()
	s.Require().Len(stats, 1)
	s.Equal("text/string", stats[0].Path)
	s.Equal(2, stats[0].Queued)
	s.Equal(int64(4), stats[0].Pushed)
	s.Equal(int64(1), stats[0].Evicted)
	s.Empty(s.transport.Connect("33:44").Subscriptions())

	s.Equal([]byte("2"), <-ch)
	s.Equal([]byte("3"), <-ch)

	s.Require().NoError(p.Unsubscribe("text/string"))
	_, open := <-ch
	s.False(open)
	s.Equal(0, s.transport.Subscribers())
}

func (s *LoopbackTestSuite) TestDisconnectDropsSubscriptions() {
	n := s.node("text/string")
	s.dispatch.On("Subscribed", mock.Anything, n).Once()
	s.dispatch.On("Unsubscribed", mock.Anything, n).Once()

	p := s.transport.Connect("11:22")
	ch, err := p.Subscribe("text/string")
	s.Require().NoError(err)

	p.Disconnect()
	_, open := <-ch
	s.False(open)

	_, err = p.Read("text/string")
	s.ErrorIs(err, ErrDisconnected)
}

func (s *LoopbackTestSuite) TestStopClosesSubscriptions() {
	n := s.node("text/string")
	s.dispatch.On("Subscribed", mock.Anything, n).Once()

	ch, err := s.transport.Connect("11:22").Subscribe("text/string")
	s.Require().NoError(err)

	s.Require().NoError(s.transport.Stop())
	_, open := <-ch
	s.False(open)

	_, err = s.transport.Connect("33:44").Read("text/string")
	s.ErrorIs(err, ErrNotStarted)
}

func TestLoopbackTestSuite(t *testing.T) {
	suite.Run(t, new(LoopbackTestSuite))
}

func TestTransport_StartHookAndDoubleStart(t *testing.T) {
	boom := errors.New("boom")
	tr := New(nil, WithStartHook(func(context.Context) error { return boom }))
	assert.ErrorIs(t, tr.Start(context.Background(), server.Advertisement{}, nil, nil), boom)

	tr = New(nil)
	require.NoError(t, tr.Start(context.Background(), server.Advertisement{LocalName: "x"}, nil, nil))
	assert.ErrorIs(t, tr.Start(context.Background(), server.Advertisement{}, nil, nil), ErrStarted)
	assert.Equal(t, "x", tr.Advertisement().LocalName)
}

func TestTransport_FailIsNonBlocking(t *testing.T) {
	tr := New(nil)
	tr.Fail(errors.New("first"))
	tr.Fail(errors.New("second"))

	err := <-tr.Errors()
	assert.EqualError(t, err, "first")
}

package console

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/srg/gattsrv/internal/registry"
	"github.com/srg/gattsrv/internal/server"
	"github.com/srg/gattsrv/internal/testutils"
	"github.com/srg/gattsrv/internal/transport/loopback"
)

// syncBuffer is written by subscription goroutines and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type ConsoleTestSuite struct {
	suite.Suite
	helper  *testutils.TestHelper
	fixture *testutils.Fixture
	srv     *server.Server
	out     *syncBuffer
	console *Console
	ctx     context.Context
	cancel  context.CancelFunc
}

func (s *ConsoleTestSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
	s.fixture = testutils.NewFixture(s.helper.Logger)
	tr := loopback.New(s.helper.Logger)

	srv, err := server.Start(server.Options{
		ServiceName:  "test",
		Configure:    s.fixture.Configure,
		Getter:       s.fixture.Store.Getter(),
		Setter:       s.fixture.Store.Setter(),
		TickInterval: time.Hour,
		InitTimeout:  time.Second,
		Transport:    tr,
		Logger:       s.helper.Logger,
	})
	s.Require().NoError(err)
	s.srv = srv

	s.out = &syncBuffer{}
	s.console = New(srv, s.fixture.Store, tr.Connect("console"), s.out, s.helper.Logger)
	s.ctx, s.cancel = context.WithCancel(context.Background())
}

func (s *ConsoleTestSuite) TearDownTest() {
	s.cancel()
	s.srv.ShutdownAndWait()
}

func TestConsoleTestSuite(t *testing.T) {
	suite.Run(t, new(ConsoleTestSuite))
}

func (s *ConsoleTestSuite) exec(line string) string {
	s.out.Reset()
	s.Require().NoError(s.console.Execute(s.ctx, line), line)
	return s.out.String()
}

func (s *ConsoleTestSuite) TestGetSetNames() {
	// GOAL: Verify registry values can be shown and changed with their declared kind
	//
	// TEST SCENARIO: get → set integer and text → get reflects the change → names lists both

	s.Equal("battery/level = int8(78)\n", s.exec("get battery/level"))
	s.Equal("battery/level = int8(50)\n", s.exec("set battery/level 50"))
	s.Equal("text/string = \"two words\"\n", s.exec("set text/string two words"))

	v, ok := s.fixture.Store.Get("battery/level")
	s.True(ok)
	s.Equal(registry.Uint8(50), v)

	s.Equal("battery/level\ntext/string\n", s.exec("names"))
}

func (s *ConsoleTestSuite) TestNotifyRunsUpdateHandler() {
	s.exec("set battery/level 12")
	s.exec("notify battery/level")

	s.Eventually(func() bool {
		return len(s.fixture.Updates("battery/level")) == 1
	}, 2*time.Second, 5*time.Millisecond)
	s.Equal(registry.Uint8(12), s.fixture.Updates("battery/level")[0])
}

func (s *ConsoleTestSuite) TestStateAndTree() {
	s.Equal("state=Running health=Ok tick=0\n", s.exec("state"))

	tree := s.exec("tree")
	s.True(strings.HasPrefix(tree, "/com/test (7 nodes)\n"), tree)
	s.Contains(tree, "Battery Level")
}

func (s *ConsoleTestSuite) TestPeerCommands() {
	// GOAL: Verify the loopback peer commands read, write and stream notifications
	//
	// TEST SCENARIO: read level → subscribe text → write text → notification printed

	s.Equal("battery/level: 4e \"N\"\n", s.exec("read battery/level"))

	s.exec("subscribe text/string")
	s.out.Reset()
	s.Require().NoError(s.console.Execute(s.ctx, "write text/string hi"))
	s.Eventually(func() bool {
		return strings.Contains(s.out.String(), "text/string <- 6869 \"hi\"")
	}, 2*time.Second, 5*time.Millisecond)
	s.Contains(s.exec("state"), "  text/string queued=0 pushed=1 evicted=0\n")

	s.Require().NoError(s.console.Execute(s.ctx, "write text/string 0x00ff"))
	s.Eventually(func() bool {
		return strings.Contains(s.out.String(), "text/string <- 00ff\n")
	}, 2*time.Second, 5*time.Millisecond)

	s.NoError(s.console.Execute(s.ctx, "unsubscribe text/string"))
}

func (s *ConsoleTestSuite) TestErrors() {
	tests := []struct {
		line string
		want string
	}{
		{"bogus", `unknown command "bogus"`},
		{"get", "usage: get <name>"},
		{"get nope", `unknown name "nope"`},
		{"set battery/level lots", `invalid integer "lots"`},
		{"notify nope", `unknown path "nope"`},
		{"notify text/string/description", "has no update handler"},
		{"read nope", "unknown path"},
		{"write battery/level 0x01", "write not permitted"},
	}
	for _, tt := range tests {
		err := s.console.Execute(s.ctx, tt.line)
		s.Require().Error(err, tt.line)
		s.Contains(err.Error(), tt.want, tt.line)
	}
	s.ErrorIs(s.console.Execute(s.ctx, "quit"), ErrQuit)
	s.NoError(s.console.Execute(s.ctx, "   "))
}

func TestConsole_WithoutPeerHidesPeerCommands(t *testing.T) {
	var out bytes.Buffer
	c := New(nil, registry.NewStore(nil), nil, &out, nil)

	require.NoError(t, c.Execute(context.Background(), "help"))
	assert.NotContains(t, out.String(), "subscribe")

	err := c.Execute(context.Background(), "read battery/level")
	assert.ErrorContains(t, err, `unknown command "read"`)
}

func TestParseBytesAndFormat(t *testing.T) {
	b, err := parseBytes("0x0a 0b")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0x0b}, b)

	b, err = parseBytes("plain")
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), b)

	_, err = parseBytes("0xzz")
	assert.Error(t, err)

	assert.Equal(t, "(empty)", formatBytes(nil))
	assert.Equal(t, `414243 "ABC"`, formatBytes([]byte("ABC")))
	assert.Equal(t, "0001", formatBytes([]byte{0, 1}))
}

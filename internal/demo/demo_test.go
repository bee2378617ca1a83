package demo

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/srg/gattsrv/internal/gatt"
	"github.com/srg/gattsrv/internal/registry"
	"github.com/srg/gattsrv/internal/server"
	"github.com/srg/gattsrv/internal/testutils"
	"github.com/srg/gattsrv/internal/transport/loopback"
)

var fixedNow = time.Date(2024, time.March, 17, 14, 5, 9, 500_000_000, time.UTC)

func TestCurrentTime(t *testing.T) {
	// 2024 = 0x07E8, Sunday = 7, half a second = 128/256
	want := []byte{0xE8, 0x07, 3, 17, 14, 5, 9, 7, 128, 0}
	assert.Equal(t, want, CurrentTime(fixedNow))

	monday := time.Date(2024, time.March, 18, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, byte(1), CurrentTime(monday)[7])
}

func TestLocalTimeInformation(t *testing.T) {
	assert.Equal(t, []byte{0, 0}, LocalTimeInformation(fixedNow))

	ist := time.FixedZone("IST", 5*3600+30*60)
	assert.Equal(t, []byte{22, 0}, LocalTimeInformation(fixedNow.In(ist)))

	west := time.FixedZone("W", -8*3600)
	assert.Equal(t, []byte{byte(0xE0), 0}, LocalTimeInformation(fixedNow.In(west)))
}

func TestASCIITime(t *testing.T) {
	assert.Equal(t, "Sun Mar 17 14:05:09 2024", ASCIITime(fixedNow))
	assert.Equal(t, "Mon Mar  4 00:00:00 2024", ASCIITime(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)))
}

func TestParseCPUInfo(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want CPU
	}{
		{
			name: "x86",
			in:   "processor : 0\nmodel name : Intel(R) Xeon(R)\n\nprocessor : 1\nmodel name : Intel(R) Xeon(R)\n",
			want: CPU{Count: 2, Model: "Intel(R) Xeon(R)"},
		},
		{
			name: "hardware fallback",
			in:   "processor : 0\nHardware : BCM2835\n",
			want: CPU{Count: 1, Model: "BCM2835"},
		},
		{
			name: "empty",
			in:   "",
			want: CPU{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCPUInfo(strings.NewReader(tt.in)))
		})
	}
}

func TestReadCPUInfo(t *testing.T) {
	got := ReadCPUInfo("testdata/cpuinfo")
	assert.Equal(t, CPU{Count: 2, Model: "ARMv7 Processor rev 4 (v7l)"}, got)

	missing := ReadCPUInfo("testdata/does-not-exist")
	assert.Positive(t, missing.Count)
	assert.NotEmpty(t, missing.Model)
}

type DemoTestSuite struct {
	suite.Suite
	helper    *testutils.TestHelper
	store     *registry.Store
	transport *loopback.Transport
	srv       *server.Server
	peer      *loopback.Peer
}

func (s *DemoTestSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
	s.store = NewStore(s.helper.Logger)
	s.transport = loopback.New(s.helper.Logger)

	svc := &Services{Now: func() time.Time { return fixedNow }, CPUInfoPath: "testdata/cpuinfo"}
	srv, err := server.Start(server.Options{
		ServiceName:  "demo",
		Configure:    svc.Configure,
		Getter:       s.store.Getter(),
		Setter:       s.store.Setter(),
		TickInterval: time.Hour,
		InitTimeout:  time.Second,
		Transport:    s.transport,
		Logger:       s.helper.Logger,
	})
	s.Require().NoError(err)
	s.srv = srv
	s.peer = s.transport.Connect("aa:bb:cc:dd:ee:ff")
}

func (s *DemoTestSuite) TearDownTest() {
	s.srv.ShutdownAndWait()
}

func TestDemoTestSuite(t *testing.T) {
	suite.Run(t, new(DemoTestSuite))
}

func (s *DemoTestSuite) TestHierarchy() {
	// GOAL: Verify the demo declares every example service in order
	//
	// TEST SCENARIO: Start server with demo services → services and node count match the declaration

	tree := s.srv.Tree()
	var names []string
	for _, svc := range tree.Services() {
		names = append(names, svc.Name())
	}
	s.Equal([]string{"device", "battery", "time", "text", "ascii_time", "cpu"}, names)
	// 6 services, 9 characteristics, 4 descriptors
	s.Equal(19, tree.Len())
	s.Len(tree.Events(), 1)
}

func (s *DemoTestSuite) TestReads() {
	// GOAL: Verify every readable demo characteristic replies with its encoded value
	//
	// TEST SCENARIO: Read each characteristic through a loopback peer → expected bytes

	tests := []struct {
		path string
		want []byte
	}{
		{"device/mfgr_name", []byte("Acme Inc.")},
		{"device/model_num", []byte("Marvin-PA")},
		{"battery/level", []byte{0x4E}},
		{"time/current", CurrentTime(fixedNow)},
		{"time/local", []byte{0, 0}},
		{"text/string", []byte("Hello, world!")},
		{"ascii_time/string", []byte("Sun Mar 17 14:05:09 2024")},
		{"cpu/count", []byte{2, 0}},
		{"cpu/model", []byte("ARMv7 Processor rev 4 (v7l)")},
		{"cpu/model/description", []byte(modelDescription)},
	}
	for _, tt := range tests {
		got, err := s.peer.Read(tt.path)
		s.Require().NoError(err, tt.path)
		s.Equal(tt.want, got, tt.path)
	}
}

func (s *DemoTestSuite) TestTextWriteNotifiesSubscriber() {
	// GOAL: Verify writing the text string stores it and notifies subscribers
	//
	// TEST SCENARIO: Subscribe → write "tickled" → notification carries it → registry holds it

	ch, err := s.peer.Subscribe("text/string")
	s.Require().NoError(err)

	s.Require().NoError(s.peer.Write("text/string", []byte("tickled")))

	select {
	case v := <-ch:
		s.Equal([]byte("tickled"), v)
	case <-time.After(2 * time.Second):
		s.Fail("no notification")
	}
	v, ok := s.store.Get(TextString)
	s.True(ok)
	s.Equal(registry.String("tickled"), v)
}

func (s *DemoTestSuite) TestReadOnlyRejectsWrite() {
	err := s.peer.Write("device/mfgr_name", []byte("x"))
	var se *loopback.StatusError
	s.Require().ErrorAs(err, &se)
	s.Equal(gatt.StatusWriteNotPermitted, se.Status)
}

type fakeNotifier struct {
	mu    sync.Mutex
	paths []string
	done  chan struct{}
}

func (f *fakeNotifier) NotifyUpdatedPath(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
}

func (f *fakeNotifier) Done() <-chan struct{} { return f.done }

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paths)
}

func TestDrainBattery(t *testing.T) {
	// GOAL: Verify the battery drains by one per interval, never below zero, and each step is announced
	//
	// TEST SCENARIO: Level 2 → drain until three intervals have passed → level 0 with exactly two notifications

	h := testutils.NewTestHelper(t)
	store := NewStore(h.Logger)
	require.True(t, store.Set(BatteryLevel, registry.Uint8(2)))
	n := &fakeNotifier{done: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		DrainBattery(ctx, store, n, 5*time.Millisecond)
		close(finished)
	}()

	require.Eventually(t, func() bool {
		v, _ := store.Get(BatteryLevel)
		level, _ := v.AsInt()
		return level == 0
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	cancel()
	<-finished
	assert.Equal(t, 2, n.count())
	assert.Equal(t, []string{BatteryLevel, BatteryLevel}, n.paths)
}

func TestDrainBattery_StopsWithServer(t *testing.T) {
	h := testutils.NewTestHelper(t)
	n := &fakeNotifier{done: make(chan struct{})}
	close(n.done)

	finished := make(chan struct{})
	go func() {
		DrainBattery(context.Background(), NewStore(h.Logger), n, time.Hour)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("DrainBattery did not return after the server stopped")
	}
}

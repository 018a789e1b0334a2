package client

import (
	"testing"
	"time"

	"github.com/ValentinKolb/dCfg/lib/db"
	"github.com/ValentinKolb/dCfg/lib/hooks"
	"github.com/ValentinKolb/dCfg/lib/store"
	"github.com/ValentinKolb/dCfg/lib/store/ostore"
	"github.com/ValentinKolb/dCfg/rpc/common"
	"github.com/ValentinKolb/dCfg/rpc/serializer"
	"github.com/ValentinKolb/dCfg/rpc/server"
	"github.com/ValentinKolb/dCfg/rpc/transport/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func startServer(t *testing.T, bus *local.Bus) *server.ConfigServer {
	s := server.NewConfigServer(common.ServerConfig{
		Name:             "global",
		ConfigFiles:      []string{"testdata/global.json"},
		ProbeDelayMillis: 100,
	}, local.NewTransport(bus), serializer.NewBinarySerializer())
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Close() })
	return s
}

func newClient(t *testing.T, bus *local.Bus, config common.ClientConfig) *ConfigClient {
	if config.Name == "" {
		config.Name = "camera"
	}
	if config.ResponseTimeoutMillis == 0 {
		config.ResponseTimeoutMillis = 1000
	}
	c, err := NewConfigClient(config, local.NewTransport(bus), serializer.NewBinarySerializer())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewConfigClientInvalidName(t *testing.T) {
	for _, name := range []string{"", "a:b", "list[0]"} {
		_, err := NewConfigClient(common.ClientConfig{Name: name}, local.NewTransport(local.NewBus()), serializer.NewJSONSerializer())
		assert.Error(t, err, name)
	}
}

func TestFinishInitWithoutServer(t *testing.T) {
	c := newClient(t, local.NewBus(), common.ClientConfig{ResponseTimeoutMillis: 50})

	require.True(t, c.PutFrom(ostore.SourceCommandLineConfigFile, "camera:fps", db.IntCell(10)))
	require.True(t, c.PutFrom(ostore.SourceCommandLineParameters, "camera:fps", db.IntCell(20)))
	require.True(t, c.PutFrom(ostore.SourceCommandLineConfigFile, "camera:mode", db.StringCell("file")))
	assert.False(t, c.IsInitFinished())

	require.NoError(t, c.FinishInit())
	assert.True(t, c.IsInitFinished())
	assert.Empty(t, c.ActiveServers())

	fps, ok := store.GetInt(c, "camera:fps", 0)
	assert.True(t, ok)
	assert.Equal(t, int32(20), fps)

	mode, ok := store.GetString(c, "camera:mode", "")
	assert.True(t, ok)
	assert.Equal(t, "file", mode)

	// no server known, the request is not awaited
	start := time.Now()
	port, ok := store.GetInt(c, "database:port", 1)
	assert.False(t, ok)
	assert.Equal(t, int32(1), port)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, int64(1), c.Stats().ValueRequests)
}

func TestFinishInitWithServer(t *testing.T) {
	bus := local.NewBus()
	s := startServer(t, bus)
	c := newClient(t, bus, common.ClientConfig{})

	require.True(t, c.PutFrom(ostore.SourceCommandLineParameters, "camera:fps", db.IntCell(30)))
	require.NoError(t, c.FinishInit())

	assert.Equal(t, []string{s.Name()}, c.ActiveServers())
	assert.Equal(t, int64(1), c.Stats().ReceivedConfigs)

	fps, _ := store.GetInt(c, "camera:fps", 0)
	assert.Equal(t, int32(30), fps)
	mode, _ := store.GetString(c, "camera:mode", "")
	assert.Equal(t, "auto", mode)

	// only the own component is kept
	assert.Equal(t, []string{"camera"}, c.Store().ComponentNames())

	// the merged config is pushed after init
	require.Eventually(t, func() bool {
		fps, _ := store.GetInt(s.Store(), "camera:fps", 0)
		return fps == 30
	}, waitFor, 10*time.Millisecond)
}

func TestRemoteValues(t *testing.T) {
	bus := local.NewBus()
	startServer(t, bus)
	c := newClient(t, bus, common.ClientConfig{})
	require.NoError(t, c.FinishInit())

	port, ok := store.GetInt(c, "database:port", 1)
	assert.True(t, ok)
	assert.Equal(t, int32(5432), port)

	host, ok := store.GetString(c, "database:host", "")
	assert.True(t, ok)
	assert.Equal(t, "db", host)

	user, ok := store.GetString(c, "database:user", "admin")
	assert.False(t, ok)
	assert.Equal(t, "admin", user)

	secure, ok := store.GetBool(c, "database:secure", true)
	assert.False(t, ok)
	assert.True(t, secure)

	replicas, ok := c.GetStringList("database:replicas", nil)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, replicas)

	fallback, ok := c.GetStringList("database:none", []string{"x", "y"})
	assert.False(t, ok)
	assert.Equal(t, []string{"x", "y"}, fallback)

	assert.Equal(t, []string{"one", "two"}, c.GetChildren("database:nested", false))
	assert.Equal(t, []string{"database:nested:one", "database:nested:two"}, c.GetChildren("database:nested", true))
	assert.Empty(t, c.GetChildren("database:port", false))

	stats := c.Stats()
	assert.Equal(t, int64(9), stats.ValueRequests)
	assert.Zero(t, stats.ValueTimeouts)

	// own component misses are not requested
	v, ok := store.GetInt(c, "camera:none", 3)
	assert.False(t, ok)
	assert.Equal(t, int32(3), v)
	assert.Equal(t, int64(9), c.Stats().ValueRequests)
}

func TestValidServerName(t *testing.T) {
	bus := local.NewBus()
	s := startServer(t, bus)
	c := newClient(t, bus, common.ClientConfig{ValidServerName: "other", ResponseTimeoutMillis: 100})
	require.NoError(t, c.FinishInit())

	// the server is known, but its messages are ignored
	assert.Equal(t, []string{s.Name()}, c.ActiveServers())
	assert.False(t, c.Exists("camera:mode"))

	port, ok := store.GetInt(c, "database:port", 1)
	assert.False(t, ok)
	assert.Equal(t, int32(1), port)
	assert.Equal(t, int64(1), c.Stats().ValueTimeouts)

	c.SetValidConfigServer("global")
	port, ok = store.GetInt(c, "database:port", 1)
	assert.True(t, ok)
	assert.Equal(t, int32(5432), port)
}

func TestPutAfterInit(t *testing.T) {
	bus := local.NewBus()
	s := startServer(t, bus)
	c := newClient(t, bus, common.ClientConfig{PushIntervalMillis: 50})
	require.NoError(t, c.FinishInit())

	assert.False(t, c.Put("database:port", db.IntCell(1)))
	require.True(t, store.PutString(c, "camera:mode", "manual"))

	require.Eventually(t, func() bool {
		mode, _ := store.GetString(s.Store(), "camera:mode", "")
		return mode == "manual"
	}, waitFor, 10*time.Millisecond)
	assert.Positive(t, c.Stats().Pushes)

	require.NoError(t, c.InsertJSONFrom(ostore.SourceComponent, `{"camera":{"gain":"3"},"database":{"port":"1"}}`))
	require.Eventually(t, func() bool {
		gain, _ := store.GetInt(s.Store(), "camera:gain", 0)
		return gain == 3
	}, waitFor, 10*time.Millisecond)

	port, _ := store.GetInt(s.Store(), "database:port", 0)
	assert.Equal(t, int32(5432), port)
}

func TestDumpProbesClients(t *testing.T) {
	bus := local.NewBus()
	s := startServer(t, bus)
	c := newClient(t, bus, common.ClientConfig{})
	require.NoError(t, c.FinishInit())
	require.True(t, store.PutInt(c, "camera:fps", 60))

	s.ClearConfig()
	assert.Contains(t, s.DumpConfig(false), `"fps":"60"`)
}

func TestServerBroadcast(t *testing.T) {
	bus := local.NewBus()
	s := startServer(t, bus)
	c := newClient(t, bus, common.ClientConfig{})
	require.NoError(t, c.FinishInit())

	fired := make(chan string, 4)
	c.Store().AddChangeHook(func(key string) bool {
		fired <- key
		return true
	})

	require.NoError(t, s.PushConfig(`{"camera":{"mode":"manual"}}`))
	select {
	case key := <-fired:
		assert.Equal(t, hooks.FullConfigKey, key)
	case <-time.After(waitFor):
		t.Fatal("change hook not called")
	}

	mode, _ := store.GetString(c, "camera:mode", "")
	assert.Equal(t, "manual", mode)
}

func TestPushInterval(t *testing.T) {
	bus := local.NewBus()
	s := startServer(t, bus)
	c := newClient(t, bus, common.ClientConfig{PushIntervalMillis: 60000})
	require.NoError(t, c.FinishInit())
	require.Eventually(t, func() bool { return c.Stats().Pushes == 1 }, waitFor, 10*time.Millisecond)

	// writes wait for the interval
	require.True(t, store.PutInt(c, "camera:exposure", 48))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), c.Stats().Pushes)
	_, ok := store.GetInt(s.Store(), "camera:exposure", 0)
	assert.False(t, ok)

	// a shorter interval publishes the pending change
	c.SetPushInterval(20 * time.Millisecond)
	require.Eventually(t, func() bool {
		exposure, _ := store.GetInt(s.Store(), "camera:exposure", 0)
		return exposure == 48
	}, waitFor, 10*time.Millisecond)
	require.Eventually(t, func() bool { return c.Stats().Pushes == 2 }, waitFor, 10*time.Millisecond)
}

func TestFlushAndClose(t *testing.T) {
	bus := local.NewBus()
	s := startServer(t, bus)
	c := newClient(t, bus, common.ClientConfig{PushIntervalMillis: 60000})
	require.True(t, store.PutInt(c, "camera:fps", 12))
	require.NoError(t, c.FinishInit())

	c.SetPushInterval(0)
	require.NoError(t, c.Flush())
	require.Eventually(t, func() bool {
		fps, _ := store.GetInt(s.Store(), "camera:fps", 0)
		return fps == 12
	}, waitFor, 10*time.Millisecond)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

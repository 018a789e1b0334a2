package common

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/dCfg/lib/hooks"
	"github.com/ValentinKolb/dCfg/lib/store"
	"github.com/ValentinKolb/dCfg/lib/store/lstore"
	"github.com/goccy/go-json"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageTypeJSON(t *testing.T) {
	for mt := MsgTRequestFullConfig; mt <= MsgTSendClientConfig; mt++ {
		t.Run(mt.String(), func(t *testing.T) {
			b, err := json.Marshal(mt)
			require.NoError(t, err)
			assert.Equal(t, `"`+mt.String()+`"`, string(b))

			var back MessageType
			require.NoError(t, json.Unmarshal(b, &back))
			assert.Equal(t, mt, back)
		})
	}

	var mt MessageType
	assert.Error(t, json.Unmarshal([]byte(`"noSuchType"`), &mt))
	assert.Equal(t, "unknown", MsgTUnknown.String())
}

func TestMessageFactories(t *testing.T) {
	req := NewRequestSingleValue("client", "db:port", ValueTInt, "5432")
	assert.Equal(t, MsgTRequestSingleValue, req.MsgType)
	assert.Equal(t, "client", req.Sender)
	assert.Equal(t, "5432", req.Value)

	resp := NewSendSingleValue("server", "client", "db:port", ValueTInt, "6543", true)
	assert.Equal(t, "client", resp.Receiver)
	assert.True(t, resp.Found)

	full := NewSendFullConfig("server", "", "{}", true)
	assert.Empty(t, full.Receiver)
	assert.True(t, full.ResetActive)

	assert.Equal(t, MsgTRequestFullConfig, NewRequestFullConfig("c").MsgType)
	assert.Equal(t, MsgTRequestClientConfig, NewRequestClientConfig("s").MsgType)
	assert.Equal(t, "{}", NewSendClientConfig("c", "{}").Config)
}

func TestLists(t *testing.T) {
	values := []string{"a", "b:c", ""}
	joined := JoinList(values)
	assert.Equal(t, "a:$@b:c:$@", joined)
	assert.Equal(t, values, SplitList(joined))
	assert.Nil(t, SplitList(""))
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "dcfg.requestFullConfig", Topic("", MsgTRequestFullConfig))
	assert.Equal(t, "prod.sendClientConfig", Topic("prod", MsgTSendClientConfig))

	c := TransportConfig{Namespace: "x"}
	assert.Equal(t, "x.sendSingleValue", c.Topic(MsgTSendSingleValue))
}

func TestConfigDefaults(t *testing.T) {
	var s ServerConfig
	assert.Equal(t, DefaultProbeDelayMillis, int(s.ProbeDelay().Milliseconds()))

	var c ClientConfig
	assert.Equal(t, DefaultPushIntervalMillis, int(c.PushInterval().Milliseconds()))
	assert.Equal(t, DefaultResponseTimeoutMillis, int(c.ResponseTimeout().Milliseconds()))

	c.Transport.Endpoints = []string{"nats://localhost:4222"}
	out := c.String()
	assert.True(t, strings.Contains(out, "CONFIG CLIENT"))
	assert.True(t, strings.Contains(out, "nats://localhost:4222"))

	h := HubConfig{Endpoint: ":9000"}
	assert.Contains(t, h.String(), ":9000")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logger.LogLevel
		wantErr bool
	}{
		{"debug", logger.DEBUG, false},
		{"INFO", logger.INFO, false},
		{"warn", logger.WARNING, false},
		{"warning", logger.WARNING, false},
		{"error", logger.ERROR, false},
		{"loud", logger.INFO, true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLogLevelHook(t *testing.T) {
	require.NoError(t, InitLoggers("info"))

	s := lstore.NewLocalStore("root", false, lstore.DefaultFactory())
	hook := NewLogLevelHook(s, "app:log_level")

	assert.False(t, hook("app:other"))

	store.PutString(s, "app:log_level", "debug")
	assert.True(t, hook("app:log_level"))
	assert.Equal(t, "debug", CurrentLogLevel())

	store.PutString(s, "app:log_level", "loud")
	assert.False(t, hook(hooks.FullConfigKey))
	assert.Equal(t, "debug", CurrentLogLevel())

	restored, _ := store.GetString(s, "app:log_level", "")
	assert.Equal(t, "debug", restored)

	require.NoError(t, InitLoggers("info"))
}

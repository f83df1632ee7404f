package logsink

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pagepulse/pagepulse/internal/testutil"
)

type recordingSink struct {
	entries []Entry
}

func (r *recordingSink) Log(_ context.Context, entry Entry) {
	r.entries = append(r.entries, entry)
}

func TestZapSink(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sink := NewZapSink(zap.New(core))

	sink.Log(context.Background(), Entry{
		Level:   LevelError,
		Source:  "monitor",
		Action:  "alert_emitted",
		Details: map[string]interface{}{"metric": "query_time"},
	})
	sink.Log(context.Background(), Entry{Level: "bogus", Source: "api", Action: "fallback"})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
	assert.Equal(t, "alert_emitted", entries[0].Message)
	assert.Equal(t, "monitor", entries[0].ContextMap()["source"])
	assert.Equal(t, "query_time", entries[0].ContextMap()["metric"])
	assert.Equal(t, zap.InfoLevel, entries[1].Level)
}

func TestMulti(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := Multi{a, nil, b, Nop{}}

	m.Log(context.Background(), Entry{Action: "x"})
	assert.Len(t, a.entries, 1)
	assert.Len(t, b.entries, 1)
}

func TestMulti_ZapAndNATS(t *testing.T) {
	_, js, cleanup := testutil.StartJetStream(t)
	defer cleanup()

	natsSink, err := NewNATSSink(js, zap.NewNop())
	require.NoError(t, err)
	core, logs := observer.New(zap.DebugLevel)

	sink := Multi{NewZapSink(zap.New(core)), natsSink}
	sink.Log(context.Background(), Entry{Level: LevelInfo, Source: "monitor", Action: "alert_emitted"})

	require.Len(t, logs.All(), 1)
	assert.Equal(t, "alert_emitted", logs.All()[0].Message)

	msgs, err := testutil.ConsumeMessages(js, "log.monitor", time.Second)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "log.monitor", Subject("monitor"))
	assert.Equal(t, "log.app", Subject(" "))
	assert.Equal(t, "log.alert_monitor_v2", Subject("alert.monitor v2"))
}

func TestNATSSink(t *testing.T) {
	_, js, cleanup := testutil.StartJetStream(t)
	defer cleanup()

	sink, err := NewNATSSink(js, zap.NewNop())
	require.NoError(t, err)

	// A second construction reuses the existing stream.
	_, err = NewNATSSink(js, zap.NewNop())
	require.NoError(t, err)

	sink.Log(context.Background(), Entry{
		Level:   LevelWarn,
		Source:  "monitor",
		Action:  "alert_emitted",
		Details: map[string]interface{}{"metric": "page_load_time", "value": 3000.0},
	})

	msgs, err := testutil.ConsumeMessages(js, "log.monitor", time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var entry Entry
	require.NoError(t, json.Unmarshal(msgs[0], &entry))
	assert.Equal(t, LevelWarn, entry.Level)
	assert.Equal(t, "alert_emitted", entry.Action)
	assert.Equal(t, "page_load_time", entry.Details["metric"])
	assert.False(t, entry.Timestamp.IsZero())
}

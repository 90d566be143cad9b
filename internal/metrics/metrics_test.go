package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := New()

	r.Stage("map", 10, 7, 0.25)
	r.Event("map", "dropped_empty_age", 2)
	r.Event("map", "dropped_empty_age", 1)
	r.Event("map", "dropped_teens", 0)
	r.GroupSeconds("adult", "male", 42.5)
	r.Deletions(3, 1)

	assert.Equal(t, 10.0, testutil.ToFloat64(r.stageRows.WithLabelValues("map", "in")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.stageRows.WithLabelValues("map", "out")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.events.WithLabelValues("map", "dropped_empty_age")))
	assert.Equal(t, 42.5, testutil.ToFloat64(r.groupSeconds.WithLabelValues("adult", "male")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.deletions.WithLabelValues("folder")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.events), "zero events are not recorded")
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder

	r.Stage("map", 1, 1, 1)
	r.Event("map", "x", 1)
	r.GroupSeconds("a", "b", 1)
	r.Deletions(1, 1)
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.Stage("balance", 5, 4, 1.5)

	path := filepath.Join(t.TempDir(), "textfile", "agecorpus.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `agecorpus_stage_rows{direction="out",stage="balance"} 4`), string(data))
}

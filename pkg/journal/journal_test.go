package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cascade-agent/pkg/risk"
	"cascade-agent/pkg/trade"
)

func TestWriteCycleNumbersRecords(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	w.nowFn = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	instr := trade.NewInstruction("rebalance", trade.ActionSell, "B", "USDC", 2, 0.8, "overweight")
	first, err := w.WriteCycle(&CycleRecord{
		Instruction: instr,
		Verdict:     &risk.Verdict{Accepted: true, Reason: "ok"},
		Success:     true,
	})
	require.NoError(t, err)
	second, err := w.WriteCycle(&CycleRecord{Skipped: "paused"})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "cycle_20240501_120000_00001.json"), first)
	assert.Equal(t, filepath.Join(dir, "cycle_20240501_120000_00002.json"), second)

	recs, err := ReadRecent(dir, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 2, recs[0].CycleNumber)
	assert.Equal(t, "paused", recs[0].Skipped)
	assert.Equal(t, 1, recs[1].CycleNumber)
	require.NotNil(t, recs[1].Instruction)
	assert.Equal(t, instr.ID, recs[1].Instruction.ID)
	assert.True(t, recs[1].Verdict.Accepted)
}

func TestReadRecentLimitAndFilter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := w.WriteCycle(&CycleRecord{Timestamp: time.Unix(int64(1700000000+i), 0)})
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	recs, err := ReadRecent(dir, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 3, recs[0].CycleNumber)
	assert.Equal(t, 2, recs[1].CycleNumber)
}

func TestWriteCycleRejectsNil(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)
	_, err = w.WriteCycle(nil)
	assert.Error(t, err)
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/record-review-gateway/internal/capture"
	"github.com/tjfontaine/record-review-gateway/internal/codec"
	"github.com/tjfontaine/record-review-gateway/internal/coordinator"
	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
	"github.com/tjfontaine/record-review-gateway/internal/storage/archive"
)

const testID = "123456-ab3dff12-89ab-4cde-8f01-1234567890ab"

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "reviewer", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	paths := [][]string{
		{"capture", "serve"},
		{"capture", "replay"},
		{"fetcher"},
		{"analyzer"},
		{"frontend"},
		{"archive", "list"},
		{"version"},
	}

	for _, path := range paths {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			sub, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "config.yaml", configFlag.DefValue)

	memoryFlag := cmd.PersistentFlags().Lookup("memory")
	require.NotNil(t, memoryFlag)
	assert.Equal(t, "false", memoryFlag.DefValue)

	for _, name := range []string{"redis", "kafka-brokers", "kafka-topic"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestStoreFlagsConflict(t *testing.T) {
	configPath := writeFile(t, "config.yaml", "")
	framesPath := writeFile(t, "frames.jsonl", "")

	_, err := execute(t, "--config", configPath, "--memory", "--redis", "127.0.0.1:1", "capture", "replay", framesPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")

	_, err = execute(t, "--config", configPath, "--memory", "--kafka-topic", "t", "capture", "replay", framesPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--kafka-brokers")
}

func TestFetcherFlags(t *testing.T) {
	cmd := NewRootCommand()
	fetcherCmd, _, err := cmd.Find([]string{"fetcher"})
	require.NoError(t, err)

	require.NotNil(t, fetcherCmd.Flags().Lookup("account"))
	require.NotNil(t, fetcherCmd.Flags().Lookup("rank"))
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "reviewer dev\n", out)
}

func replayLine(t *testing.T, dir domain.Direction, content []byte) string {
	t.Helper()
	b, err := json.Marshal(capture.ReplayFrame{Direction: dir.String(), Content: content})
	require.NoError(t, err)
	return string(b)
}

func TestCaptureReplay(t *testing.T) {
	req := (&codec.GameRecordRequest{GameUUID: testID, ClientVersion: "v0.10"}).Marshal()
	res := (&codec.GameRecord{UUID: testID, Data: []byte{0x08, 0x01}}).Marshal()

	lines := []string{
		replayLine(t, domain.Outbound, codec.Request(7, codec.MethodFetchGameRecord, req)),
		"",
		replayLine(t, domain.Inbound, codec.Response(7, res)),
	}
	framesPath := writeFile(t, "frames.jsonl", strings.Join(lines, "\n")+"\n")
	configPath := writeFile(t, "config.yaml", "capture:\n  logging:\n    level: error\n")

	out, err := execute(t, "--config", configPath, "--memory", "capture", "replay", framesPath)
	require.NoError(t, err)

	var stats capture.Stats
	require.NoError(t, json.Unmarshal([]byte(out[strings.Index(out, "{"):]), &stats))
	assert.Equal(t, uint64(2), stats.Frames)
	assert.Equal(t, uint64(1), stats.Exchanges)
	assert.Equal(t, uint64(1), stats.Events)
	assert.Zero(t, stats.Pending)
}

func TestCaptureReplayWithRedisFlag(t *testing.T) {
	mr := miniredis.RunT(t)
	req := (&codec.GameRecordRequest{GameUUID: testID}).Marshal()
	res := (&codec.GameRecord{UUID: testID, Data: []byte{0x08, 0x01}}).Marshal()

	lines := []string{
		replayLine(t, domain.Outbound, codec.Request(3, codec.MethodFetchGameRecord, req)),
		replayLine(t, domain.Inbound, codec.Response(3, res)),
	}
	framesPath := writeFile(t, "frames.jsonl", strings.Join(lines, "\n")+"\n")
	configPath := writeFile(t, "config.yaml", "store:\n  type: memory\ncapture:\n  logging:\n    level: error\n")

	_, err := execute(t, "--config", configPath, "--redis", mr.Addr(), "capture", "replay", framesPath)
	require.NoError(t, err)

	raw, err := mr.List(coordinator.QueueRawRecords)
	require.NoError(t, err)
	assert.Equal(t, []string{string(res)}, raw)
}

func TestCaptureReplayBadLine(t *testing.T) {
	framesPath := writeFile(t, "frames.jsonl", "{not json}\n")
	configPath := writeFile(t, "config.yaml", "capture:\n  logging:\n    level: error\n")

	_, err := execute(t, "--config", configPath, "--memory", "capture", "replay", framesPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestArchiveList(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reviews.db")
	a, err := archive.Open(dbPath)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, a.Put(ctx, testID, &domain.Review{Review: json.RawMessage(`{}`), Timestamp: 1700000000}))
	require.NoError(t, a.Put(ctx, "654321-00000000-0000-4000-8000-000000000000",
		&domain.Review{ErrorCode: domain.ErrorCodeNoSuchGame, Timestamp: 1700000001}))
	require.NoError(t, a.Close())

	t.Run("text", func(t *testing.T) {
		out, err := execute(t, "archive", "list", "--db", dbPath)
		require.NoError(t, err)
		assert.Contains(t, out, "RECORD")
		assert.Contains(t, out, testID)
		assert.Contains(t, out, "1203")
	})

	t.Run("json filtered", func(t *testing.T) {
		out, err := execute(t, "archive", "list", "--db", dbPath, "--format", "json", "--error-code", "0")
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 1)
		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
		assert.Equal(t, testID, got["record_id"])
		assert.Equal(t, map[string]any{}, got["review"])
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := execute(t, "archive", "list", "--db", dbPath, "--format", "xml")
		assert.Error(t, err)
	})
}

func TestArchiveListWithoutPath(t *testing.T) {
	configPath := writeFile(t, "config.yaml", "store:\n  type: memory\n")
	_, err := execute(t, "--config", configPath, "archive", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no archive configured")
}

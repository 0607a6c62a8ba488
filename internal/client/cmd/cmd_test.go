package cmd

import (
	"bufio"
	"context"
	"bytes"
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rudransh-shrivastava/pitshare/internal/db"
	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
	"github.com/rudransh-shrivastava/pitshare/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompterConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"y", true},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		p := &prompter{in: bufio.NewReader(strings.NewReader(tt.input)), out: &out}

		got := p.confirm(session.Metadata{Name: "photo.jpg", Size: 2048}, "10.0.0.2:7070")
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Equal(t, `Accept "photo.jpg" (2.0 kB) from 10.0.0.2:7070? [y/N] `, out.String())
	}
}

func TestPrintHistoryEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printHistory(&out, nil))
	assert.Equal(t, "No transfers yet.\n", out.String())
}

func TestPrintHistory(t *testing.T) {
	var out bytes.Buffer
	records := []db.TransferRecord{
		{
			SID:       "s1",
			Peer:      "10.0.0.2:7070",
			Direction: "upload",
			FileName:  "notes.txt",
			Size:      1500,
			Reason:    "success",
			EndedAt:   time.Now().Add(-2 * time.Hour),
		},
	}
	require.NoError(t, printHistory(&out, records))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "WHEN"))
	assert.Contains(t, lines[1], "2 hours ago")
	assert.Contains(t, lines[1], "notes.txt")
	assert.Contains(t, lines[1], "1.5 kB")
	assert.Contains(t, lines[1], "success")
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"send", "receive", "history", "config"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func TestSendRequiresPeerOrDiscover(t *testing.T) {
	sendPeer, sendDiscover = "", false
	_, err := resolvePeer(context.Background())
	assert.Error(t, err)

	sendPeer = "127.0.0.1:7070"
	defer func() { sendPeer = "" }()
	addr, err := resolvePeer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7070", addr)
}

func TestCheckStored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	sum := fmt.Sprintf("%x", sha1.Sum([]byte("hello")))

	f := session.ReceivedFile{Name: "notes.txt", Algo: protocol.HashAlgoSHA1, Hash: strings.ToUpper(sum), Path: path}
	assert.NoError(t, checkStored(f))

	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0o644))
	assert.Error(t, checkStored(f))

	f.Path = filepath.Join(t.TempDir(), "missing")
	assert.Error(t, checkStored(f))
}

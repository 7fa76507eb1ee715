package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mikempw/dnsfailover/internal/dnsprovider"
	"github.com/mikempw/dnsfailover/internal/lease"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("script provider test assumes a POSIX shell")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestSetRecordsInvokesScriptWithContract(t *testing.T) {
	dir := t.TempDir()
	outFile := filepath.Join(dir, "captured.txt")
	setScript := writeScript(t, dir, "set.sh", fmt.Sprintf(`echo "$1 $2 $3 $4 $5 $6" > %s
exit 0
`, outFile))
	getScript := writeScript(t, dir, "get.sh", `echo '{"A":null,"TXT":null}'`)

	cfg := dnsprovider.Config{Record: "syslog.example.com", Zone: "example.com", TTL: 30}
	p := New(cfg, setScript, getScript)

	require.NoError(t, p.SetRecords(context.Background(), "10.10.10.10", lease.Primary, 1700000060))

	got, err := os.ReadFile(outFile)
	require.NoError(t, err)
	require.Equal(t, "syslog.example.com 10.10.10.10 primary 1700000060 30 example.com\n", string(got))
}

func TestSetRecordsNonZeroExitIsTransient(t *testing.T) {
	dir := t.TempDir()
	setScript := writeScript(t, dir, "set.sh", `echo "boom" 1>&2
exit 1
`)
	getScript := writeScript(t, dir, "get.sh", `echo '{"A":null,"TXT":null}'`)

	p := New(dnsprovider.Config{Record: "r", Zone: "z", TTL: 30}, setScript, getScript)
	err := p.SetRecords(context.Background(), "10.10.10.10", lease.Primary, 1)
	require.Error(t, err)
	var transient *dnsprovider.TransientError
	require.ErrorAs(t, err, &transient)
}

func TestGetRecordsParsesJSON(t *testing.T) {
	dir := t.TempDir()
	setScript := writeScript(t, dir, "set.sh", `exit 0`)
	getScript := writeScript(t, dir, "get.sh", `echo '{"A":"10.10.10.10","TXT":"owner=primary exp=42"}'`)

	p := New(dnsprovider.Config{Record: "r", Zone: "z", TTL: 30}, setScript, getScript)
	recs, err := p.GetRecords(context.Background())
	require.NoError(t, err)
	require.Equal(t, "10.10.10.10", *recs.A)
	require.Equal(t, lease.Lease{Owner: lease.Primary, ExpiresAt: 42}, recs.Lease())
}

func TestGetRecordsAbsentRecordsAreNullNotError(t *testing.T) {
	dir := t.TempDir()
	setScript := writeScript(t, dir, "set.sh", `exit 0`)
	getScript := writeScript(t, dir, "get.sh", `echo '{"A":null,"TXT":null}'`)

	p := New(dnsprovider.Config{Record: "r", Zone: "z", TTL: 30}, setScript, getScript)
	recs, err := p.GetRecords(context.Background())
	require.NoError(t, err)
	require.Nil(t, recs.A)
	require.Nil(t, recs.TXT)
}

package filedb_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"metaldesk/pkg/filedb"

	"github.com/stretchr/testify/require"
)

func TestAppendAndReadLastLine(t *testing.T) {
	fdb, err := filedb.New(filepath.Join(t.TempDir(), "journal/test.log"))
	require.Nil(t, err)
	defer fdb.Close()

	s, err := fdb.ReadLastLine()
	require.Nil(t, err)
	require.Equal(t, "", s)

	require.Nil(t, fdb.Append(map[string]string{"order": "a"}))
	require.Nil(t, fdb.Append(map[string]string{"order": "b"}))

	s, err = fdb.ReadLastLine()
	require.Nil(t, err)
	require.Equal(t, `{"order":"b"}`, s)
}

func TestReadLastLineLongLine(t *testing.T) {
	fdb, err := filedb.New(filepath.Join(t.TempDir(), "long.log"))
	require.Nil(t, err)
	defer fdb.Close()

	long := strings.Repeat("x", 3000)
	require.Nil(t, fdb.WriteLine("first\n"))
	require.Nil(t, fdb.WriteLine(long+"\n"))

	s, err := fdb.ReadLastLine()
	require.Nil(t, err)
	require.Equal(t, long, s)
}

func TestTailf(t *testing.T) {
	fdb, err := filedb.New(filepath.Join(t.TempDir(), "tail.log"))
	require.Nil(t, err)
	defer fdb.Close()

	for i := 0; i < 3; i++ {
		require.Nil(t, fdb.WriteLine(fmt.Sprintf("line %d\n", i)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch := make(chan string, 8)
	go fdb.Tailf(ctx, ch)

	for i := 0; i < 3; i++ {
		select {
		case got := <-ch:
			require.Equal(t, fmt.Sprintf("line %d", i), got)
		case <-ctx.Done():
			t.Fatal("timeout waiting for tailed line")
		}
	}
}

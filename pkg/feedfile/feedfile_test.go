package feedfile_test

import (
	"fmt"
	"path"
	"testing"
	"time"

	"traderev/pkg/feedfile"

	"github.com/stretchr/testify/require"
)

func TestWriteAndReadLines(t *testing.T) {
	ff, err := feedfile.New(path.Join(t.TempDir(), "feed/transactions.log"))
	require.Nil(t, err)
	defer ff.Close()

	first := `{"id":1,"symbol":"AAPL"}`
	last := `{"id":2,"symbol":"TSLA"}`
	require.Nil(t, ff.WriteLine(first+"\n"))
	require.Nil(t, ff.WriteLine(last+"\n"))

	s, err := ff.ReadFirstLine()
	require.Nil(t, err)
	require.Equal(t, first, s)

	s, err = ff.ReadLastLine()
	require.Nil(t, err)
	require.Equal(t, last, s)
}

func TestReadLastLineLongFile(t *testing.T) {
	ff, err := feedfile.New(path.Join(t.TempDir(), "feed/transactions.log"))
	require.Nil(t, err)
	defer ff.Close()

	// push the first lines past the 1024 byte tail window
	for i := 0; i < 200; i++ {
		require.Nil(t, ff.WriteLine(fmt.Sprintf(`{"id":%d}`+"\n", i)))
	}

	s, err := ff.ReadLastLine()
	require.Nil(t, err)
	require.Equal(t, `{"id":199}`, s)
}

func TestFollow(t *testing.T) {
	ff, err := feedfile.New(path.Join(t.TempDir(), "feed/transactions.log"))
	require.Nil(t, err)
	defer ff.Close()

	ch := make(chan string, 64)
	go func() {
		ff.Tailf(ch)
	}()

	for i := 0; i < 10; i++ {
		require.Nil(t, ff.WriteLine(fmt.Sprintf(`{"id":%d}`+"\n", i)))
	}

	for i := 0; i < 10; i++ {
		select {
		case s := <-ch:
			require.Equal(t, fmt.Sprintf(`{"id":%d}`, i), s)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for line %d", i)
		}
	}
}

func TestToStoreBatches(t *testing.T) {
	ff, err := feedfile.New(path.Join(t.TempDir(), "feed/transactions.log"))
	require.Nil(t, err)
	defer ff.Close()

	var got []string
	ff.ToStoreHandler = func(ss []string) error {
		got = append(got, ss...)
		return nil
	}

	ch := make(chan string, 64)
	for i := 0; i < 25; i++ {
		ch <- fmt.Sprintf(`{"id":%d}`, i)
	}
	close(ch)

	require.Nil(t, ff.ToStore(ch))
	require.Len(t, got, 25)
	require.Equal(t, `{"id":0}`, got[0])
	require.Equal(t, `{"id":24}`, got[24])
}

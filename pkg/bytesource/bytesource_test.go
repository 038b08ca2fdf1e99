package bytesource

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bgrewell/archivefs/pkg/vfs"
)

func TestFromBytes(t *testing.T) {
	src := FromBytes([]byte("hello world"))
	require.Equal(t, int64(11), src.Size())

	got, err := src.Get(6, 5)
	require.NoError(t, err)
	require.Equal(t, "world", string(got))

	_, err = src.Get(6, 100)
	require.ErrorIs(t, err, vfs.ErrInvalidArgument)
}

func TestFromReaderAt(t *testing.T) {
	r := bytes.NewReader([]byte("0123456789"))
	src := FromReaderAt(r, 10)

	got, err := src.GetContext(context.Background(), 2, 4)
	require.NoError(t, err)
	require.Equal(t, "2345", string(got))
}

func TestStreamBlocksUntilDelivered(t *testing.T) {
	s := NewStream(5)

	results := make(chan []byte, 1)
	go func() {
		data, err := s.Get(0, 5)
		require.NoError(t, err)
		results <- data
	}()

	time.Sleep(10 * time.Millisecond)
	_, err := s.TryGet(0, 5)
	require.ErrorIs(t, err, vfs.ErrTryAgain)

	_, err = s.Write([]byte("hello"))
	require.NoError(t, err)
	s.Close(nil)

	select {
	case data := <-results:
		require.Equal(t, "hello", string(data))
	case <-time.After(time.Second):
		t.Fatal("Get never unblocked after Write")
	}
}

func TestStreamCloseWithErrorPropagates(t *testing.T) {
	s := NewStream(5)
	wantErr := errors.New("producer failed")

	done := make(chan error, 1)
	go func() {
		_, err := s.Get(0, 5)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	s.Close(wantErr)

	require.Equal(t, wantErr, <-done)
}

func TestStreamGetContextCancellation(t *testing.T) {
	s := NewStream(5)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := s.GetContext(ctx, 0, 5)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("GetContext never observed cancellation")
	}
}

func TestFromStream(t *testing.T) {
	r := bytes.NewReader([]byte("streamed content"))
	s := FromStream(r, int64(r.Len()))

	got, err := s.Get(0, int64(len("streamed content")))
	require.NoError(t, err)
	require.Equal(t, "streamed content", string(got))
}

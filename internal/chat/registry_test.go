package chat_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linemk/parfume-shop/internal/chat"
)

// fakeSender запоминает отправленные кадры
type fakeSender struct {
	mu      sync.Mutex
	frames  []any
	closed  bool
	sendErr error
}

var _ chat.Sender = (*fakeSender)(nil)

func (f *fakeSender) Send(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.frames = append(f.frames, v)
	return nil
}

func (f *fakeSender) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSender) sent() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.frames...)
}

func (f *fakeSender) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestRegistry_BindOverwrites(t *testing.T) {
	r := chat.NewRegistry()
	first, second := &fakeSender{}, &fakeSender{}

	assert.Nil(t, r.Bind(1, 10, first))
	prev := r.Bind(1, 10, second)
	assert.Same(t, first, prev)

	got, ok := r.Get(1, 10)
	assert.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, r.Len())

	// тот же пользователь в другом канале - отдельная привязка
	r.Bind(2, 10, first)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_UnbindOnlyOwnConnection(t *testing.T) {
	r := chat.NewRegistry()
	old, fresh := &fakeSender{}, &fakeSender{}

	r.Bind(1, 10, old)
	r.Bind(1, 10, fresh)

	// старое соединение закрылось позже и не должно отвязать новое
	assert.False(t, r.Unbind(1, 10, old))
	got, ok := r.Get(1, 10)
	assert.True(t, ok)
	assert.Same(t, fresh, got)

	assert.True(t, r.Unbind(1, 10, fresh))
	_, ok = r.Get(1, 10)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := chat.NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			s := &fakeSender{}
			for j := 0; j < 100; j++ {
				r.Bind(1, userID, s)
				if got, ok := r.Get(1, userID); ok {
					_ = got.Send("ping")
				}
				r.Unbind(1, userID, s)
			}
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}

func TestFakeSender_Error(t *testing.T) {
	s := &fakeSender{sendErr: errors.New("broken pipe")}
	assert.Error(t, s.Send("x"))
}

// Package chat ведёт живые соединения чата по товарам и маршрутизирует сообщения между покупателем и продавцом.
package chat

import "sync"

// Sender живое соединение, в которое можно писать кадры
type Sender interface {
	Send(v any) error
	Close() error
}

type key struct {
	itemID int64
	userID int64
}

// Registry соединения по паре (товар, пользователь); на пару не больше одного соединения
type Registry struct {
	mu    sync.RWMutex
	conns map[key]Sender
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[key]Sender)}
}

// Bind регистрирует соединение и возвращает предыдущее для той же пары, если оно было
func (r *Registry) Bind(itemID, userID int64, s Sender) Sender {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{itemID: itemID, userID: userID}
	prev := r.conns[k]
	r.conns[k] = s
	if prev == s {
		return nil
	}
	return prev
}

// Unbind снимает привязку, только если она всё ещё указывает на s.
// Закрывающееся старое соединение не должно отвязать новое.
func (r *Registry) Unbind(itemID, userID int64, s Sender) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{itemID: itemID, userID: userID}
	if cur, ok := r.conns[k]; ok && cur == s {
		delete(r.conns, k)
		return true
	}
	return false
}

func (r *Registry) Get(itemID, userID int64) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.conns[key{itemID: itemID, userID: userID}]
	return s, ok
}

// Len количество живых соединений
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Package ipc implements the mailbox: a single-producer,
// single-consumer FIFO of tagged messages with a FIFO waiter queue for
// blocking reads. Ported from the reference kernel's
// scheduler/mailbox.{h,cpp}; where that file either panics
// ("got asked to write a message to a mailbox!") or refuses timeouts
// ("TODO: support ... with a timeout"), this package implements the
// full contract those comments leave for an implementer to define:
// non-blocking Send, a Read that either returns immediately or blocks
// up to a deadline, and FIFO wake order among blocked readers.
package ipc

import (
	"sync"
	"time"

	"rosekernel/defs"
	"rosekernel/handle"
	"rosekernel/util"
)

// MessageKind tags a mailbox message's payload, matching
// rose::syscall::mailbox_message_type in the reference kernel's wire
// format.
type MessageKind int

const (
	KindHandleToken MessageKind = iota
	KindUser
)

// Message is one mailbox entry: either a handle being transferred
// (resolved into a fresh token in the receiver's table at read time,
// the way syscall_rose_mailbox_read_handler calls
// register_for_token), or two plain data words.
type Message struct {
	Kind  MessageKind
	Obj   handle.Object // KindHandleToken
	Perm  defs.Perm     // KindHandleToken
	Data0 uint64         // KindUser
	Data1 uint64         // KindUser
}

type waiter struct {
	wake chan struct{}
}

// Mailbox is a bounded FIFO of Messages plus a FIFO queue of blocked
// readers.
type Mailbox struct {
	mu      sync.Mutex
	queue   *util.RingBuffer[Message]
	waiters []*waiter
}

// NewMailbox allocates a mailbox holding up to depth undelivered
// messages.
func NewMailbox(depth int) *Mailbox {
	return &Mailbox{queue: util.NewRingBuffer[Message](depth)}
}

func (m *Mailbox) Kind() defs.ObjectKind { return defs.KindMailbox }

// Send enqueues msg, waking the longest-waiting blocked reader if
// any. It reports ENOMEM if the mailbox is at its configured depth --
// a bounded alternative to the reference kernel's unbounded
// util::fifo, since an unbounded mailbox was never actually required.
func (m *Mailbox) Send(msg Message) defs.ErrT {
	m.mu.Lock()
	if !m.queue.Push(msg) {
		m.mu.Unlock()
		return defs.ENOMEM
	}
	var w *waiter
	if len(m.waiters) > 0 {
		w = m.waiters[0]
		m.waiters = m.waiters[1:]
	}
	m.mu.Unlock()
	if w != nil {
		close(w.wake)
	}
	return defs.ENONE
}

// Read pops the oldest message. If none is pending: with block=false
// it returns ENOTREADY immediately (timeout==0 in the syscall ABI);
// with block=true it waits up to timeout for one to arrive (timeout
// of zero duration means wait forever), returning ETIMEDOUT if the
// deadline elapses first. Blocked readers are served in the order
// they started waiting.
func (m *Mailbox) Read(block bool, timeout time.Duration) (Message, defs.ErrT) {
	m.mu.Lock()
	if msg, ok := m.queue.Pop(); ok {
		m.mu.Unlock()
		return msg, defs.ENONE
	}
	if !block {
		m.mu.Unlock()
		return Message{}, defs.ENOTREADY
	}
	w := &waiter{wake: make(chan struct{})}
	m.waiters = append(m.waiters, w)
	m.mu.Unlock()

	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	for {
		select {
		case <-w.wake:
			m.mu.Lock()
			if msg, ok := m.queue.Pop(); ok {
				m.mu.Unlock()
				return msg, defs.ENONE
			}
			// Spurious: another reader's Read popped the
			// message before this waiter woke. Re-register
			// at the back and keep waiting.
			w = &waiter{wake: make(chan struct{})}
			m.waiters = append(m.waiters, w)
			m.mu.Unlock()
		case <-deadline:
			m.removeWaiter(w)
			return Message{}, defs.ETIMEDOUT
		}
	}
}

func (m *Mailbox) removeWaiter(target *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, w := range m.waiters {
		if w == target {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			return
		}
	}
}

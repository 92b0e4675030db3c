package room

import (
	"io"
	"sync"
	"time"
)

type fakeFrame struct {
	messageType int
	data        []byte
}

// fakeSocket is a minimal in-memory stand-in for *websocket.Conn,
// satisfying wsConn, grounded on the teacher's transport tests' use of a
// mock wsConnection.
type fakeSocket struct {
	mu          sync.Mutex
	in          chan fakeFrame
	out         [][]byte
	outTypes    []int
	pongHandler func(string) error
	closed      bool
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{in: make(chan fakeFrame, 32)}
}

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	frame, ok := <-f.in
	if !ok {
		return 0, nil, io.EOF
	}
	return frame.messageType, frame.data, nil
}

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), data...)
	f.out = append(f.out, cp)
	f.outTypes = append(f.outTypes, messageType)
	return nil
}

func (f *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeSocket) SetPongHandler(h func(string) error) {
	f.pongHandler = h
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.in)
	}
	return nil
}

func (f *fakeSocket) push(messageType int, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.in <- fakeFrame{messageType: messageType, data: data}
}

func (f *fakeSocket) writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.out))
	copy(out, f.out)
	return out
}

func (f *fakeSocket) writeTypes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.outTypes))
	copy(out, f.outTypes)
	return out
}

package stream

import (
	"errors"
	"io"
	"time"

	"github.com/AlverezYari/juststop/pkg/camera"
	"github.com/AlverezYari/juststop/pkg/frame"
)

func (m *Manager) startCapture() {
	m.slot = frame.NewSlot[capture]()
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go captureLoop(m.stream, m.processor, m.slot, m.stop, m.done)
}

const errBackoff = 50 * time.Millisecond

// captureLoop reads frames until stop is closed, leaving only the most
// recent picture (or the most recent error) in slot.
func captureLoop(s camera.Stream, p *frame.Processor, slot *frame.Slot[capture], stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		f, err := s.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				select {
				case <-stop:
					return
				default:
				}
			}
			slot.Offer(capture{err: err})
			if errors.Is(err, io.EOF) {
				// the stream ended underneath us; nothing more will come
				return
			}
			select {
			case <-stop:
				return
			case <-time.After(errBackoff):
			}
			continue
		}

		pic, err := p.Process(f)
		slot.Offer(capture{pic: pic, err: err})
	}
}

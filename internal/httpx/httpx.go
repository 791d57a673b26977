package httpx

import (
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultStartTimeout = time.Second * 10
	probeInterval       = time.Millisecond * 100
)

// StartAsync starts s in the background and returns once its
// address accepts connections.
func StartAsync(s *http.Server) error {
	return StartAsyncTimeout(s, defaultStartTimeout)
}

func StartAsyncTimeout(s *http.Server, timeout time.Duration) error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case err := <-errChan:
			return err
		case <-time.After(probeInterval):
		}
		if listening(s.Addr) {
			return nil
		}
	}
	return errors.Errorf("unable to start server on %s", s.Addr)
}

// listening reports whether something accepts connections on addr.
func listening(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

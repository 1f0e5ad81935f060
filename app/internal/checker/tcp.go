package checker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"infrastatus/app/internal/models"
)

// CheckServer opens and immediately closes a TCP connection.
func CheckServer(ctx context.Context, s models.Server) (models.ServerCheck, error) {
	rec := models.ServerCheck{
		CheckRecord: models.CheckRecord{Kind: models.KindServer, Target: s.Name},
		Host:        s.Host,
		Port:        s.Port,
		Type:        s.Type,
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout())
	defer cancel()

	var d net.Dialer
	t0 := time.Now()
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(s.Host, strconv.Itoa(s.Port)))
	ms := int(time.Since(t0).Milliseconds())
	rec.CheckedAt = time.Now().UTC()
	if err != nil {
		rec.Status = models.StatusDown
		rec.Error = connectionFailed(err)
		return rec, newProbeError(s.Name, err)
	}
	_ = conn.Close()

	rec.Status = models.StatusOperational
	rec.ResponseMS = &ms
	return rec, nil
}

// connectionFailed formats a dial error with its OS error code, 0 when the
// failure carries none.
func connectionFailed(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return fmt.Sprintf("Connection failed: %s (%d)", errno.Error(), int(errno))
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "Connection failed: connection timed out (0)"
	}
	return fmt.Sprintf("Connection failed: %v (0)", err)
}

package checker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"infrastatus/app/internal/models"
)

const maxPingReply = 512

// pingRequest is the legacy server-list ping (0xFE 0x01).
var pingRequest = []byte{0xFE, 0x01}

var errEmptyReply = errors.New("no response from server")

// PingInfo is the part of a server-list reply we keep.
type PingInfo struct {
	Version    string
	MOTD       string
	Players    int
	MaxPlayers int
}

// CheckGameServer connects, sends the legacy ping and parses whatever the
// server answers within the timeout.
func CheckGameServer(ctx context.Context, g models.GameServer) (models.GameServerCheck, error) {
	rec := models.GameServerCheck{
		CheckRecord: models.CheckRecord{Kind: models.KindGameServer, Target: g.Name},
		Host:        g.Host,
		Port:        g.Port,
	}

	ctx, cancel := context.WithTimeout(ctx, g.Timeout())
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(g.Host, strconv.Itoa(g.Port)))
	if err != nil {
		rec.Status = models.StatusDown
		rec.Error = connectionFailed(err)
		rec.CheckedAt = time.Now().UTC()
		return rec, newProbeError(g.Name, err)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	t0 := time.Now()
	reply, err := exchangePing(conn)
	ping := int(time.Since(t0).Milliseconds())
	rec.PingMS = ping
	rec.ResponseMS = &ping
	rec.CheckedAt = time.Now().UTC()

	if len(reply) == 0 {
		rec.Status = models.StatusDown
		rec.Error = "No response from server"
		if err == nil {
			return rec, &ProbeError{Target: g.Name, Kind: ErrProbeProtocol, Err: errEmptyReply}
		}
		return rec, newProbeError(g.Name, err)
	}

	info := ParsePingReply(reply)
	rec.Status = ClassifyGameServer(info.Players, info.MaxPlayers)
	rec.Version = info.Version
	rec.MOTD = info.MOTD
	rec.PlayersOnline = max(0, info.Players)
	rec.MaxPlayers = max(0, info.MaxPlayers)
	return rec, nil
}

// exchangePing writes the ping and returns the first chunk of a plain reply.
// A 0xFF kick packet is read until complete, EOF, the buffer limit or the
// deadline. Bytes read before an error are returned.
func exchangePing(conn net.Conn) ([]byte, error) {
	if _, err := conn.Write(pingRequest); err != nil {
		return nil, err
	}
	buf := make([]byte, maxPingReply)
	n := 0
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		n += m
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			return buf[:n], err
		}
		if n == 0 {
			continue
		}
		if buf[0] != 0xFF {
			break
		}
		if want, ok := kickLength(buf[:n]); ok && n >= want {
			break
		}
	}
	return buf[:n], nil
}

// kickLength reports the full size of a 0xFF kick packet once its header is in.
func kickLength(b []byte) (int, bool) {
	if len(b) < 3 || b[0] != 0xFF {
		return 0, false
	}
	return 3 + 2*int(binary.BigEndian.Uint16(b[1:3])), true
}

// ParsePingReply splits the reply on NUL separators and reads fields 2..5
// as version, MOTD, players online and max players. Replies with fewer than
// six fields yield zero values.
func ParsePingReply(reply []byte) PingInfo {
	fields := splitReply(reply)
	var info PingInfo
	if len(fields) < 6 {
		return info
	}
	info.Version = fields[2]
	info.MOTD = fields[3]
	info.Players = leadingInt(fields[4])
	info.MaxPlayers = leadingInt(fields[5])
	return info
}

func splitReply(reply []byte) []string {
	if text, ok := decodeKick(reply); ok {
		return strings.Split(text, "\x00")
	}
	parts := bytes.Split(reply, []byte{0})
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = string(p)
	}
	return out
}

// decodeKick decodes the UTF-16BE payload of a kick packet, tolerating a
// payload cut short by the read limit.
func decodeKick(reply []byte) (string, bool) {
	want, ok := kickLength(reply)
	if !ok {
		return "", false
	}
	payload := reply[3:]
	if len(reply) < want {
		payload = payload[:len(payload)&^1]
	} else {
		payload = payload[:want-3]
	}
	units := make([]uint16, len(payload)/2)
	for i := range units {
		units[i] = binary.BigEndian.Uint16(payload[2*i:])
	}
	return string(utf16.Decode(units)), true
}

// leadingInt parses an optional sign and leading digits, ignoring the rest.
// Anything without leading digits is 0.
func leadingInt(s string) int {
	s = strings.TrimLeft(s, " \t\n\r")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// Package mailtest provides a minimal in-process SMTP relay for tests.
package mailtest

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Relay implements only the commands the gomail client issues and answers
// with scripted replies. The zero value accepts everything without AUTH.
type Relay struct {
	// AuthReply answers AUTH. Empty means AUTH is not advertised.
	AuthReply string
	// RcptReplies overrides the RCPT reply per recipient address.
	RcptReplies map[string]string
	// DataReplies overrides the final DATA reply for the nth accepted message.
	DataReplies []string

	wg         sync.WaitGroup
	mu         sync.Mutex
	recipients []string
	messages   []string
}

// Start listens on a random loopback port until the test ends.
func Start(t testing.TB, r *Relay) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			r.serve(conn)
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		r.wg.Wait()
	})
	return "127.0.0.1", ln.Addr().(*net.TCPAddr).Port
}

// Recipients lists every accepted RCPT address in order.
func (r *Relay) Recipients() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.recipients...)
}

// Messages lists the raw DATA of every message, including rejected ones.
func (r *Relay) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func (r *Relay) serve(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
	br := bufio.NewReader(conn)
	fmt.Fprintf(conn, "220 localhost Test SMTP Service Ready\r\n")
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "EHLO"), strings.HasPrefix(line, "HELO"):
			if r.AuthReply != "" {
				fmt.Fprintf(conn, "250-localhost Hello\r\n250 AUTH PLAIN LOGIN\r\n")
			} else {
				fmt.Fprintf(conn, "250-localhost Hello\r\n250 OK\r\n")
			}
		case strings.HasPrefix(line, "AUTH"):
			fmt.Fprintf(conn, "%s\r\n", r.AuthReply)
		case line == "*":
			fmt.Fprintf(conn, "501 5.5.2 Cancelled\r\n")
		case strings.HasPrefix(line, "MAIL FROM:"):
			fmt.Fprintf(conn, "250 OK\r\n")
		case strings.HasPrefix(line, "RCPT TO:"):
			rcpt := strings.Trim(strings.TrimPrefix(line, "RCPT TO:"), "<>")
			if reply, ok := r.RcptReplies[rcpt]; ok {
				fmt.Fprintf(conn, "%s\r\n", reply)
				continue
			}
			r.mu.Lock()
			r.recipients = append(r.recipients, rcpt)
			r.mu.Unlock()
			fmt.Fprintf(conn, "250 OK\r\n")
		case strings.HasPrefix(line, "DATA"):
			fmt.Fprintf(conn, "354 End data with <CR><LF>.<CR><LF>\r\n")
			var data strings.Builder
			for {
				dline, derr := br.ReadString('\n')
				if derr != nil || strings.TrimSpace(dline) == "." {
					break
				}
				data.WriteString(dline)
			}
			r.mu.Lock()
			n := len(r.messages)
			r.messages = append(r.messages, data.String())
			r.mu.Unlock()
			reply := "250 OK: queued as 12345"
			if n < len(r.DataReplies) && r.DataReplies[n] != "" {
				reply = r.DataReplies[n]
			}
			fmt.Fprintf(conn, "%s\r\n", reply)
		case strings.HasPrefix(line, "QUIT"):
			fmt.Fprintf(conn, "221 Bye\r\n")
			return
		default:
			fmt.Fprintf(conn, "250 OK\r\n")
		}
	}
}

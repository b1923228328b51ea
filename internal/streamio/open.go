package streamio

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
)

// Endpoint is a parsed stream URL.
type Endpoint struct {
	Scheme  string
	Network string // "tcp", "unix" or "" for files
	Address string
}

// ParseURL parses a stream URL.
func ParseURL(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	switch u.Scheme {
	case "tcp", "listen":
		if u.Host == "" {
			return Endpoint{}, fmt.Errorf("%w: %s url needs host:port", ErrInvalidURL, u.Scheme)
		}
		return Endpoint{Scheme: u.Scheme, Network: "tcp", Address: u.Host}, nil
	case "unix":
		if u.Path == "" {
			return Endpoint{}, fmt.Errorf("%w: unix url needs a path", ErrInvalidURL)
		}
		return Endpoint{Scheme: u.Scheme, Network: "unix", Address: u.Path}, nil
	case "file":
		if u.Path == "" {
			return Endpoint{}, fmt.Errorf("%w: file url needs a path", ErrInvalidURL)
		}
		return Endpoint{Scheme: u.Scheme, Address: u.Path}, nil
	default:
		return Endpoint{}, fmt.Errorf("%w: %q (use tcp, unix, file or listen)", ErrUnsupportedScheme, u.Scheme)
	}
}

// Open opens the stream named by raw. For listen:// URLs it blocks until a
// peer connects or ctx is done.
func Open(ctx context.Context, raw string) (io.ReadWriteCloser, error) {
	ep, err := ParseURL(raw)
	if err != nil {
		return nil, err
	}
	if ep.Scheme == "listen" {
		return accept(ctx, ep.Address)
	}
	return dial(ctx, ep)
}

// Dial opens a tcp://, unix:// or file:// stream.
func Dial(ctx context.Context, raw string) (io.ReadWriteCloser, error) {
	ep, err := ParseURL(raw)
	if err != nil {
		return nil, err
	}
	if ep.Scheme == "listen" {
		return nil, fmt.Errorf("%w: use Listen for listen:// urls", ErrUnsupportedScheme)
	}
	return dial(ctx, ep)
}

// Listen accepts exactly one peer on a listen://host:port URL and stops
// listening once it has connected.
func Listen(ctx context.Context, raw string) (io.ReadWriteCloser, error) {
	ep, err := ParseURL(raw)
	if err != nil {
		return nil, err
	}
	if ep.Scheme != "listen" {
		return nil, fmt.Errorf("%w: Listen needs a listen:// url, got %q", ErrUnsupportedScheme, ep.Scheme)
	}
	return accept(ctx, ep.Address)
}

func dial(ctx context.Context, ep Endpoint) (io.ReadWriteCloser, error) {
	if ep.Network == "" {
		f, err := os.OpenFile(ep.Address, os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
		}
		return f, nil
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, ep.Network, ep.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrOpenFailed, ep.Address, err)
	}
	return conn, nil
}

func accept(ctx context.Context, address string) (io.ReadWriteCloser, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %w", ErrOpenFailed, address, err)
	}
	return acceptOne(ctx, ln)
}

// acceptOne waits for a single connection on ln and closes ln.
func acceptOne(ctx context.Context, ln net.Listener) (io.ReadWriteCloser, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := ln.Accept()
		ch <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		ln.Close()
		if r := <-ch; r.conn != nil {
			r.conn.Close()
		}
		return nil, fmt.Errorf("%w: accept: %w", ErrOpenFailed, ctx.Err())
	case r := <-ch:
		ln.Close()
		if r.err != nil {
			return nil, fmt.Errorf("%w: accept: %w", ErrOpenFailed, r.err)
		}
		return r.conn, nil
	}
}

// Package streamio opens the byte streams a device and a bridge talk over.
//
// A stream is addressed by URL:
//
//	tcp://host:port       dial a TCP peer
//	unix:///path/to/sock  dial a Unix socket
//	file:///dev/ttyUSB0   open a device node (line settings applied externally)
//	listen://host:port    accept exactly one TCP peer
//
// Conn adapts any io.ReadWriteCloser to the non-blocking Available /
// ReadAvailable / WriteString surface used by the device session. A
// background goroutine fills a bounded buffer so polling never blocks.
package streamio

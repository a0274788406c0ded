/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package supervisor

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"strconv"

	"github.com/nabbar/golib/address"
	"github.com/nabbar/golib/handler"
	"github.com/nabbar/golib/logger"
	"github.com/nabbar/golib/rules"
	"github.com/nabbar/golib/selector"
	"golang.org/x/sync/errgroup"
)

const maxUDPFrame = 65507

// readFrame/writeFrame implement the length-prefixed message framing this
// supervisor uses over res.Stream for UDP-over-stream forwarding. The
// client-facing wire format of each proxy protocol's own UDP framing is out
// of scope (handler/codec.go); this framing is the supervisor's internal
// representation once a handler has peeled its protocol layer.
func readFrame(r io.Reader) ([]byte, error) {
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint16(hdr)
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	return buf, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	hdr := make([]byte, 2)
	binary.BigEndian.PutUint16(hdr, uint16(len(payload)))

	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func resolveUDPAddr(loc address.NetLocation) (*net.UDPAddr, error) {
	if loc.IsIP() {
		return &net.UDPAddr{IP: loc.IP(), Port: int(loc.Port)}, nil
	}
	return net.ResolveUDPAddr("udp", loc.String())
}

// udpLocalAddr builds the egress bind address for rc, or nil if rc carries
// no explicit bind address (the OS picks one), as client.localAddr does for a
// direct client.
func udpLocalAddr(rc rules.ResolvedClient) *net.UDPAddr {
	if rc.Address.Port == 0 && rc.Address.IP() == nil {
		return nil
	}
	return &net.UDPAddr{IP: rc.Address.IP(), Port: int(rc.Address.Port)}
}

// serveBidirectionalUDP implements SPEC_FULL.md §4.6's BidirectionalUdpForward
// branch: a single remote is judged once, a connected UDP socket is opened,
// and framed messages are pumped in both directions until either side errs.
func (s *Supervisor) serveBidirectionalUDP(ctx context.Context, res handler.SetupResult, sel selector.Selector, log logger.Logger) {
	decision := sel.Judge(ctx, res.RemoteLocation)
	if decision.Block {
		s.count("blocked")
		if s.Metrics != nil {
			s.Metrics.BlockedTotal.Inc()
		}
		logWarn(log, "udp forward blocked by rule", res.RemoteLocation.String())
		return
	}

	raddr, err := resolveUDPAddr(decision.Remote)
	if err != nil {
		s.count("error")
		logError(log, "cannot resolve udp remote", err)
		return
	}

	d := &net.Dialer{
		LocalAddr: udpLocalAddr(decision.Client),
		Control:   bindControl(decision.Client.Config.BindInterface),
	}

	netConn, dialErr := d.DialContext(ctx, "udp", raddr.String())
	if dialErr != nil {
		s.count("error")
		logError(log, "udp dial failed", dialErr)
		return
	}
	conn := netConn.(*net.UDPConn)
	defer conn.Close()

	s.count("forwarded")

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			frame, e := readFrame(res.Stream)
			if e != nil {
				return e
			}
			if _, e = conn.Write(frame); e != nil {
				return e
			}
		}
	})

	g.Go(func() error {
		buf := make([]byte, maxUDPFrame)
		for {
			n, e := conn.Read(buf)
			if e != nil {
				return e
			}
			if e = writeFrame(res.Stream, buf[:n]); e != nil {
				return e
			}
		}
	})

	if err := g.Wait(); err != nil && log != nil {
		log.Debug("udp bridging loop ended", err)
	}
}

// serveMultidirectionalUDP implements the MultidirectionalUdpForward branch:
// default_decision() is consulted once (no single target exists at decision
// time - the preserved known limitation, see selector.Default), and an
// unconnected UDP socket relays per-message destinations carried in the
// stream's framing.
func (s *Supervisor) serveMultidirectionalUDP(ctx context.Context, res handler.SetupResult, sel selector.Selector, log logger.Logger) {
	decision := sel.Default()
	if decision.Block {
		s.count("blocked")
		if s.Metrics != nil {
			s.Metrics.BlockedTotal.Inc()
		}
		logWarn(log, "multidirectional udp blocked by default decision", nil)
		return
	}

	laddr := udpLocalAddr(decision.Client)
	bindAddr := "0.0.0.0:0"
	if laddr != nil {
		bindAddr = laddr.String()
	}

	lc := net.ListenConfig{Control: bindControl(decision.Client.Config.BindInterface)}

	conn, err := lc.ListenPacket(ctx, "udp", bindAddr)
	if err != nil {
		s.count("error")
		logError(log, "udp listen failed", err)
		return
	}
	defer conn.Close()

	s.count("forwarded")

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			dest, frame, e := readAddressedFrame(res.Stream)
			if e != nil {
				return e
			}
			raddr, e := resolveUDPAddr(dest)
			if e != nil {
				continue
			}
			if _, e = conn.WriteTo(frame, raddr); e != nil {
				return e
			}
		}
	})

	g.Go(func() error {
		buf := make([]byte, maxUDPFrame)
		for {
			n, from, e := conn.ReadFrom(buf)
			if e != nil {
				return e
			}
			loc, e2 := address.ParseLocation(from.String(), 0)
			if e2 != nil {
				continue
			}
			if e = writeAddressedFrame(res.Stream, loc, buf[:n]); e != nil {
				return e
			}
		}
	})

	if err := g.Wait(); err != nil && log != nil {
		log.Debug("multidirectional udp loop ended", err)
	}
}

// readAddressedFrame/writeAddressedFrame extend the length-prefixed framing
// with a leading destination: [1-byte host length][host][2-byte port][2-byte
// payload length][payload].
func readAddressedFrame(r io.Reader) (address.NetLocation, []byte, error) {
	hl := make([]byte, 1)
	if _, err := io.ReadFull(r, hl); err != nil {
		return address.NetLocation{}, nil, err
	}

	host := make([]byte, hl[0])
	if _, err := io.ReadFull(r, host); err != nil {
		return address.NetLocation{}, nil, err
	}

	portBuf := make([]byte, 2)
	if _, err := io.ReadFull(r, portBuf); err != nil {
		return address.NetLocation{}, nil, err
	}
	port := binary.BigEndian.Uint16(portBuf)

	frame, err := readFrame(r)
	if err != nil {
		return address.NetLocation{}, nil, err
	}

	loc, perr := address.ParseLocation(net.JoinHostPort(string(host), strconv.Itoa(int(port))), 0)
	if perr != nil {
		return address.NetLocation{}, nil, perr
	}

	return loc, frame, nil
}

func writeAddressedFrame(w io.Writer, loc address.NetLocation, payload []byte) error {
	host := []byte(loc.Host)

	if _, err := w.Write([]byte{byte(len(host))}); err != nil {
		return err
	}
	if _, err := w.Write(host); err != nil {
		return err
	}

	portBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(portBuf, loc.Port)
	if _, err := w.Write(portBuf); err != nil {
		return err
	}

	return writeFrame(w, payload)
}

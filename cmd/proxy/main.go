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

// Command proxy loads a server configuration document, resolves its rule and
// protocol trees, and runs one listener per server until interrupted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nabbar/golib/config"
	"github.com/nabbar/golib/handler"
	"github.com/nabbar/golib/listener"
	"github.com/nabbar/golib/logger"
	"github.com/nabbar/golib/rules"
	"github.com/nabbar/golib/selector"
	"github.com/nabbar/golib/supervisor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	configPaths []string
	metricsBind string
)

func main() {
	root := &cobra.Command{
		Use:   "proxy",
		Short: "Multi-protocol proxy server",
		RunE:  run,
	}

	root.Flags().StringArrayVarP(&configPaths, "config", "c", nil, "configuration file (repeatable, later files merge over earlier ones)")
	root.Flags().StringVar(&metricsBind, "metrics-bind", "", "address to expose Prometheus metrics on (empty disables it)")
	_ = root.MarkFlagRequired("config")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.New(ctx)

	doc, derr := config.Load(configPaths...)
	if derr != nil {
		return derr
	}

	servers, rerr := rules.Resolve(doc)
	if rerr != nil {
		return rerr
	}

	reg := prometheus.NewRegistry()

	listeners := make([]listener.Listener, 0, len(servers))
	for i := range servers {
		srv := servers[i]

		h, err := handler.Build(srv.Protocol, handler.Scope{Rules: srv.Rules})
		if err != nil {
			return err
		}

		sup := &supervisor.Supervisor{
			Handler:  h,
			Selector: selector.New(srv.Rules, selector.NewNetResolver()),
			TCP:      srv.TcpSettings,
			Log:      log,
			Metrics:  supervisor.NewMetrics(reg, fmt.Sprintf("server_%d", i)),
		}

		ln, err := listener.Build(&srv, sup, log)
		if err != nil {
			return err
		}

		log.Info("listener ready", ln.Addr())
		listeners = append(listeners, ln)
	}

	if metricsBind != "" {
		srv := &http.Server{Addr: metricsBind, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			_ = srv.ListenAndServe()
		}()
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
	}

	err := listener.Run(ctx, listeners...)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

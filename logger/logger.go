/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
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

package logger

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	logcfg "github.com/nabbar/golib/logger/config"
	logent "github.com/nabbar/golib/logger/entry"
	logfld "github.com/nabbar/golib/logger/fields"
	loglvl "github.com/nabbar/golib/logger/level"
	"github.com/sirupsen/logrus"
)

// Logger is the structured logging facade shared by every component of the proxy:
// the supervisor, the handler factory, the rule resolver and the listeners all log
// through the same instance so fields (connection id, rule name, peer address) are
// consistently attached.
type Logger interface {
	// SetOptions applies bootstrap/stdout configuration, (re)creating the underlying
	// logrus.Logger and its formatter.
	SetOptions(opt *logcfg.Options) error

	// SetLevel changes the minimum level logged by the standard logrus output.
	SetLevel(lvl loglvl.Level)

	// SetFields replaces the base fields merged into every entry produced by this logger.
	SetFields(f logfld.Fields)

	// Entry starts a new structured log entry at the given level with the given message.
	Entry(lvl loglvl.Level, message string) logent.Entry

	// CheckError logs err at lvlKO if non-nil, or message at lvlOK otherwise. Returns
	// true if err was non-nil.
	CheckError(lvlKO, lvlOK loglvl.Level, message string, err error) bool

	Debug(message string, data interface{})
	Info(message string, data interface{})
	Warning(message string, data interface{})
	Error(message string, data interface{})
	Fatal(message string, data interface{})

	// Clone returns a new Logger sharing the same context but owning an independent
	// copy of the base fields, suitable for attaching per-connection fields.
	Clone(ctx context.Context) Logger
}

type logger struct {
	m sync.RWMutex
	c context.Context
	l *logrus.Logger
	o *logcfg.Options
	f logfld.Fields
}

// New creates a Logger bound to ctx with InfoLevel and no fields. Call SetOptions
// to attach a concrete output before use.
func New(ctx context.Context) Logger {
	if ctx == nil {
		ctx = context.Background()
	}

	l := &logger{
		c: ctx,
		l: logrus.New(),
		f: logfld.New(ctx),
	}

	l.l.SetLevel(loglvl.InfoLevel.Logrus())
	l.l.SetOutput(os.Stdout)

	return l
}

func (o *logger) SetOptions(opt *logcfg.Options) error {
	if opt == nil {
		return fmt.Errorf("nil logger options")
	}

	if err := opt.Validate(); err != nil {
		return err
	}

	o.m.Lock()
	defer o.m.Unlock()

	o.o = opt

	log := logrus.New()
	log.SetOutput(os.Stdout)

	if opt.Stdout != nil && opt.Stdout.DisableStandard {
		if f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0); err == nil {
			log.SetOutput(f)
		}
	}

	log.SetFormatter(&logrus.TextFormatter{
		DisableColors:    opt.Stdout != nil && opt.Stdout.DisableColor,
		DisableTimestamp: opt.Stdout != nil && opt.Stdout.DisableTimestamp,
		FullTimestamp:    true,
	})

	o.l = log

	return nil
}

func (o *logger) SetLevel(lvl loglvl.Level) {
	o.m.Lock()
	defer o.m.Unlock()

	if o.l != nil {
		o.l.SetLevel(lvl.Logrus())
	}
}

func (o *logger) SetFields(f logfld.Fields) {
	o.m.Lock()
	defer o.m.Unlock()

	o.f = f
}

func (o *logger) getLogrus() *logrus.Logger {
	o.m.RLock()
	defer o.m.RUnlock()

	return o.l
}

func (o *logger) getFields() logfld.Fields {
	o.m.RLock()
	defer o.m.RUnlock()

	if o.f == nil {
		return logfld.New(o.c)
	}

	return o.f.Clone()
}

func (o *logger) caller(skip int) (caller, file string, line uint64) {
	pc, f, l, ok := runtime.Caller(skip)
	if !ok {
		return "", "", 0
	}

	if fn := runtime.FuncForPC(pc); fn != nil {
		n := fn.Name()
		if i := strings.LastIndex(n, "/"); i >= 0 {
			n = n[i+1:]
		}
		caller = n
	}

	if i := strings.LastIndex(f, "/"); i >= 0 {
		f = f[i+1:]
	}

	return caller, f, uint64(l)
}

func (o *logger) Entry(lvl loglvl.Level, message string) logent.Entry {
	var (
		caller, file string
		line         uint64
	)

	if o.o != nil && o.o.Stdout != nil && o.o.Stdout.EnableTrace {
		caller, file, line = o.caller(3)
	}

	lg := o.getLogrus()

	return logent.New(lvl).
		SetLogger(func() *logrus.Logger { return lg }).
		FieldSet(o.getFields()).
		SetEntryContext(time.Now(), 0, caller, file, line, message)
}

func (o *logger) CheckError(lvlKO, lvlOK loglvl.Level, message string, err error) bool {
	return o.Entry(lvlKO, message).ErrorAdd(true, err).Check(lvlOK)
}

func (o *logger) Debug(message string, data interface{}) {
	o.Entry(loglvl.DebugLevel, message).DataSet(data).Log()
}

func (o *logger) Info(message string, data interface{}) {
	o.Entry(loglvl.InfoLevel, message).DataSet(data).Log()
}

func (o *logger) Warning(message string, data interface{}) {
	o.Entry(loglvl.WarnLevel, message).DataSet(data).Log()
}

func (o *logger) Error(message string, data interface{}) {
	o.Entry(loglvl.ErrorLevel, message).DataSet(data).Log()
}

func (o *logger) Fatal(message string, data interface{}) {
	o.Entry(loglvl.FatalLevel, message).DataSet(data).Log()
}

func (o *logger) Clone(ctx context.Context) Logger {
	if ctx == nil {
		ctx = o.c
	}

	o.m.RLock()
	defer o.m.RUnlock()

	n := &logger{
		c: ctx,
		l: o.l,
		o: o.o,
		f: logfld.New(ctx),
	}

	if o.f != nil {
		n.f.Merge(o.f)
	}

	return n
}

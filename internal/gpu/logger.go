//go:build !nogpu

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpu runs the bitonic sort kernels as WGSL compute shaders on a
// gogpu/wgpu HAL device. Each kernel launch is recorded as one compute pass;
// Finish submits the recorded passes and waits for the device.
package gpu

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// discard drops every record until bsort.SetLogger reaches the device.
type discard struct{}

func (discard) Enabled(context.Context, slog.Level) bool  { return false }
func (discard) Handle(context.Context, slog.Record) error { return nil }
func (discard) WithAttrs([]slog.Attr) slog.Handler        { return discard{} }
func (discard) WithGroup(string) slog.Handler             { return discard{} }

// deviceLogger holds the logger of every wgpu device in the process. Records
// carry device=wgpu so they can be told apart from the cpu and opencl ones.
var deviceLogger atomic.Pointer[slog.Logger]

func init() {
	setLogger(nil)
}

func slogger() *slog.Logger { return deviceLogger.Load() }

// setLogger installs l, tagged with the device name. Nil restores the
// discarding logger.
func setLogger(l *slog.Logger) {
	if l == nil {
		deviceLogger.Store(slog.New(discard{}))
		return
	}
	deviceLogger.Store(l.With("device", Name))
}
